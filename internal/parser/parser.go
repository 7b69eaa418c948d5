// Package parser turns the scanner engine's raw stdout into structured
// events. The engine is an external process printing human-oriented
// text, so everything here is best effort: a line either matches a
// known marker or it is dropped, never an error.
package parser

import (
	"regexp"
	"strings"

	"luxe_sniper/internal/models"
)

// addressPattern matches one token mint address. 32 to 44 alphanumeric
// characters covers base58 Solana addresses without committing to one
// exact charset, since the engine prints addresses from several APIs.
var addressPattern = regexp.MustCompile(`\b[A-Za-z0-9]{32,44}\b`)

// Markers the engine prints. Buy lines look like "🟢 BUYING <mint>".
// Sell activity is spread over a few line shapes; any of the sell
// markers plus a mint address counts as one sell signal.
const (
	markerBuy       = "BUYING"
	markerTargetHit = "TARGET HIT"
	markerProcess   = "Processing:"
	markerSellTx    = "SELL TX"
	markerSold      = "SOLD"
)

// emergencyMarkers classify a sell as a stop loss. Checked before any
// other sell classification so a line carrying both "EMERGENCY" and
// "Processing:" counts once, as a stop loss.
var emergencyMarkers = []string{"EMERGENCY", "CRASH"}

// statusMarkers produce informational broadcasts with no state change.
var statusMarkers = []string{"BOT STARTED", "Starting Scan", "Scan Complete"}

// Parser buffers partial lines across chunk boundaries and emits
// events in textual order. It is not safe for concurrent use; feed it
// from the single goroutine draining the engine's stdout.
type Parser struct {
	buf strings.Builder
}

func New() *Parser {
	return &Parser{}
}

// Feed consumes one chunk of engine output and returns every event
// completed by it. A chunk may close out zero, one, or many lines;
// text after the last newline stays buffered for the next chunk.
func (p *Parser) Feed(chunk string) []models.EngineEvent {
	p.buf.WriteString(chunk)

	data := p.buf.String()
	lastNL := strings.LastIndexByte(data, '\n')
	if lastNL < 0 {
		return nil
	}
	complete := data[:lastNL]
	p.buf.Reset()
	p.buf.WriteString(data[lastNL+1:])

	var events []models.EngineEvent
	for _, line := range strings.Split(complete, "\n") {
		if ev, ok := parseLine(strings.TrimSpace(line)); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush drops any buffered partial line. Called when the engine exits.
func (p *Parser) Flush() {
	p.buf.Reset()
}

// parseLine classifies one complete line. Sell markers are checked
// first: an emergency exit line mentions the position being closed and
// must never be misread as anything else.
func parseLine(line string) (models.EngineEvent, bool) {
	if line == "" {
		return models.EngineEvent{}, false
	}

	// Status banners first: the startup banner mentions the emergency
	// exit feature and must not be misread as a sell.
	for _, m := range statusMarkers {
		if strings.Contains(line, m) {
			return models.EngineEvent{Kind: models.EventStatusNote, Text: line}, true
		}
	}

	if reason, ok := sellReason(line); ok {
		if addr, ok := singleAddress(line); ok {
			return models.EngineEvent{
				Kind:         models.EventSellSignal,
				TokenAddress: addr,
				Reason:       reason,
			}, true
		}
		// A sell marker without a mint address (e.g. the "SELL
		// SEQUENCE INITIATED" banner) carries nothing actionable.
		return models.EngineEvent{}, false
	}

	if strings.Contains(line, markerBuy) {
		if addr, ok := singleAddress(line); ok {
			return models.EngineEvent{
				Kind:         models.EventBuySignal,
				TokenAddress: addr,
			}, true
		}
		return models.EngineEvent{}, false
	}

	return models.EngineEvent{}, false
}

// sellReason reports whether the line is a closing action and, if so,
// exactly one reason for it. Precedence: stop loss, then target hit,
// then generic sold.
func sellReason(line string) (models.CloseReason, bool) {
	for _, m := range emergencyMarkers {
		if strings.Contains(line, m) {
			return models.ReasonStopLoss, true
		}
	}
	if strings.Contains(line, markerTargetHit) {
		return models.ReasonTargetHit, true
	}
	if strings.Contains(line, markerProcess) ||
		strings.Contains(line, markerSellTx) ||
		strings.Contains(line, markerSold) {
		return models.ReasonManualSell, true
	}
	return "", false
}

// singleAddress extracts the mint address, requiring exactly one on
// the line. Lines with none or several are too ambiguous to act on.
func singleAddress(line string) (string, bool) {
	matches := addressPattern.FindAllString(line, 2)
	if len(matches) != 1 {
		return "", false
	}
	return matches[0], true
}
