// Audit logging for commerce-critical events. Audit entries are structured
// JSON lines so order disputes and stock discrepancies can be replayed from
// the log.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Cart events
	AuditCartAdd    AuditEventType = "cart_add"
	AuditCartUpdate AuditEventType = "cart_update"
	AuditCartClear  AuditEventType = "cart_clear"
	AuditCartMerge  AuditEventType = "cart_merge"

	// Order lifecycle events
	AuditOrderPlaced    AuditEventType = "order_placed"
	AuditOrderStatus    AuditEventType = "order_status"
	AuditOrderCancelled AuditEventType = "order_cancelled"

	// Merchant events
	AuditProductCreate AuditEventType = "product_create"
	AuditProductUpdate AuditEventType = "product_update"
	AuditProductDelete AuditEventType = "product_delete"
	AuditImageUpload   AuditEventType = "image_upload"

	// AI events
	AuditAnalysisRun     AuditEventType = "analysis_run"
	AuditAnalysisApplied AuditEventType = "analysis_applied"
)

// AuditEvent represents a structured audit log entry.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`    // Unix milliseconds
	EventType  AuditEventType         `json:"event"` //
	UserID     string                 `json:"user,omitempty"`
	Target     string                 `json:"target,omitempty"` // order/product/cart ID
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// InitAudit initializes the audit logging system
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Audit log started at %s\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// AuditLog writes an audit event. No-op unless debug mode and InitAudit ran.
func AuditLog(event AuditEvent) {
	if !IsDebugMode() {
		return
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// AuditSuccess records a successful commerce event.
func AuditSuccess(eventType AuditEventType, userID, target, msg string) {
	AuditLog(AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Target:    target,
		Success:   true,
		Message:   msg,
	})
}

// AuditFailure records a failed commerce event with its error.
func AuditFailure(eventType AuditEventType, userID, target string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	AuditLog(AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Target:    target,
		Success:   false,
		Error:     msg,
	})
}
