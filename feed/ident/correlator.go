package ident

import (
	"sync"

	"go.uber.org/zap"
)

// Correlator links the three identifier spaces seen in the script
// stream: display names, account uids and per-connection session ids
// (dpnid). One Correlator serves one log source; mappings accumulate
// for the lifetime of the process.
type Correlator struct {
	mu               sync.Mutex
	accountToName    map[string]string
	sessionToName    map[string]string
	sessionToAccount map[string]string
	processedPairs   map[string]struct{}
	logger           *zap.Logger
}

// New creates a Correlator.
func New(logger *zap.Logger) *Correlator {
	return &Correlator{
		accountToName:    make(map[string]string),
		sessionToName:    make(map[string]string),
		sessionToAccount: make(map[string]string),
		processedPairs:   make(map[string]struct{}),
		logger:           logger,
	}
}

// ObserveSession records a direct name-to-account mapping, as produced
// by StateMachine lines and admin connect lines.
func (c *Correlator) ObserveSession(name, accountID string) {
	if name == "" || accountID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountToName[accountID] = name
}

// ObserveDebugSave records the name side of a session id.
func (c *Correlator) ObserveDebugSave(name, sessionID string) {
	if name == "" || sessionID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionToName[sessionID] = name
	// A previously seen account on the same session links up now.
	if acct, ok := c.sessionToAccount[sessionID]; ok {
		c.accountToName[acct] = name
	}
}

// ObserveDebugExit records the account side of a session id and, when
// the name side is already known, links the account to the name.
func (c *Correlator) ObserveDebugExit(accountID, sessionID string) {
	if accountID == "" || sessionID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionToAccount[sessionID] = accountID
	if name, ok := c.sessionToName[sessionID]; ok {
		c.accountToName[accountID] = name
	}
}

// NameByAccount returns the display name for an account uid, if known.
func (c *Correlator) NameByAccount(accountID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.accountToName[accountID]
	return name, ok
}

// ResolveDevice handles one device registration sighting. Each
// device/account pair is evaluated once per source; repeats return
// duplicate=true. An unresolved pair is still consumed: the mapping is
// taken as observed at registration time, with no retry on later polls.
func (c *Correlator) ResolveDevice(deviceID, accountID string) (name string, duplicate bool) {
	key := deviceID + ":" + accountID
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.processedPairs[key]; ok {
		return "", true
	}
	c.processedPairs[key] = struct{}{}
	name, ok := c.accountToName[accountID]
	if !ok {
		c.logger.Debug("device registration with unknown account",
			zap.String("device", deviceID),
			zap.String("account", accountID))
		return "", false
	}
	return name, false
}
