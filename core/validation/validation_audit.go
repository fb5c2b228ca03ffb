package validation

import (
	"log"
	"sync"
)

var (
	auditMu     sync.RWMutex
	auditLogger = log.Default()
)

// SetAuditLogger redirects validation audit lines; nil restores log.Default().
func SetAuditLogger(l *log.Logger) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if l == nil {
		l = log.Default()
	}
	auditLogger = l
}

// AuditValidationError logs validation errors (without PHI)
func AuditValidationError(context, errMsg string) {
	auditMu.RLock()
	logger := auditLogger
	auditMu.RUnlock()
	logger.Printf("[VALIDATION] %s | %s", context, errMsg)
}
