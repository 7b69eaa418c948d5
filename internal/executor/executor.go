// Package executor launches the external Python trading scripts. The
// scripts own all transaction construction and submission; this layer
// only starts them with the right arguments and, for display, scrapes
// their output for a transaction signature.
package executor

import (
	"bufio"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// signaturePattern matches a transaction signature printed by the
// scripts, either bare or inside an explorer URL.
var signaturePattern = regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{64,88}\b`)

// ScriptExecutor runs the venv Python interpreter against scripts in
// one directory, mirroring the layout the scanner engine ships with.
type ScriptExecutor struct {
	python     string // Interpreter path, e.g. venv/bin/python3
	scriptsDir string
}

func NewScriptExecutor(python, scriptsDir string) *ScriptExecutor {
	return &ScriptExecutor{python: python, scriptsDir: scriptsDir}
}

// Buy starts execute_buy.py for one account. Returns once the process
// is launched; confirmation is never awaited.
func (e *ScriptExecutor) Buy(credential, tokenAddress string, amount decimal.Decimal) error {
	return e.launch("execute_buy.py", credential, tokenAddress, amount.String())
}

// Sell starts execute_sell.py for one account. Same fire-and-forget
// contract as Buy.
func (e *ScriptExecutor) Sell(credential, tokenAddress string) error {
	return e.launch("execute_sell.py", credential, tokenAddress)
}

// launch starts a script and drains its output in the background. A
// nil error means the process started; whatever happens after that is
// logged for display and otherwise ignored.
func (e *ScriptExecutor) launch(script string, args ...string) error {
	cmd := exec.Command(e.python, append([]string{filepath.Join(e.scriptsDir, script)}, args...)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%s: %w", script, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", script, err)
	}

	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			if sig := signaturePattern.FindString(line); sig != "" {
				log.Printf("%s: tx %s", script, sig)
			}
		}
		if err := cmd.Wait(); err != nil {
			log.Printf("%s: exited: %v", script, err)
		}
	}()
	return nil
}

// Transfer runs transfer.py to completion and returns the signature
// line it printed. Unlike trades, a transfer is a direct user request,
// so the caller waits for the result to echo it back.
func (e *ScriptExecutor) Transfer(credential, toAddress, amount string) (string, error) {
	out, err := exec.Command(e.python,
		filepath.Join(e.scriptsDir, "transfer.py"), credential, toAddress, amount).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("transfer.py: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// RugCheck runs the rug-history analyzer and returns its full report
// text for display in chat.
func (e *ScriptExecutor) RugCheck(tokenAddress string) (string, error) {
	out, err := exec.Command(e.python,
		filepath.Join(e.scriptsDir, "main.py"), tokenAddress).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("main.py: %w", err)
	}
	report := strings.TrimSpace(string(out))
	if report == "" {
		report = "No data."
	}
	return report, nil
}
