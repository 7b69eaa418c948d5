package telegram

import "sync"

// promptState names what a chat's next free-text message means.
type promptState int

const (
	promptNone promptState = iota
	promptPrivateKey
	promptTarget
	promptAmount
	promptTransferAddress
	promptTransferAmount
	promptRugToken
)

// session is per-chat UI state: the active prompt, message ids for the
// delete-and-replace rendering style, and the pending transfer target.
type session struct {
	prompt          promptState
	lastMenuMsgID   int
	lastStatusMsgID int
	lastPromptMsgID int
	pendingTransfer string // Destination address captured in step 1
}

// sessionStore guards per-chat sessions. The update handler and the
// dispatcher's notifications touch it from different goroutines, so
// every access goes through a locked method.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[int64]*session)}
}

func (s *sessionStore) ensure(chatID int64) *session {
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &session{}
		s.sessions[chatID] = sess
	}
	return sess
}

// takePrompt atomically reads and clears the chat's prompt state so a
// message is only ever interpreted once.
func (s *sessionStore) takePrompt(chatID int64) promptState {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensure(chatID)
	p := sess.prompt
	sess.prompt = promptNone
	return p
}

func (s *sessionStore) setPrompt(chatID int64, p promptState, promptMsgID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensure(chatID)
	sess.prompt = p
	sess.lastPromptMsgID = promptMsgID
}

// swapStatusMsg records the new status message id and returns the one
// it replaces, for deletion.
func (s *sessionStore) swapStatusMsg(chatID int64, msgID int) (previous int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensure(chatID)
	previous = sess.lastStatusMsgID
	sess.lastStatusMsgID = msgID
	return previous
}

func (s *sessionStore) swapMenuMsg(chatID int64, msgID int) (previous int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensure(chatID)
	previous = sess.lastMenuMsgID
	sess.lastMenuMsgID = msgID
	return previous
}

// takePromptMsg returns and clears the last prompt message id.
func (s *sessionStore) takePromptMsg(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensure(chatID)
	id := sess.lastPromptMsgID
	sess.lastPromptMsgID = 0
	return id
}

func (s *sessionStore) setPendingTransfer(chatID int64, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(chatID).pendingTransfer = to
}

func (s *sessionStore) takePendingTransfer(chatID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensure(chatID)
	to := sess.pendingTransfer
	sess.pendingTransfer = ""
	return to
}
