package connectshare

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventSignedIn            = "signed_in"
	auditEventSignedOut           = "signed_out"
	auditEventTokenRefreshed      = "token_refreshed"
	auditEventSessionFetchFailure = "session_fetch_failure"
	auditEventProfilePatched      = "profile_patched"
	auditEventPatchDropped        = "profile_patch_dropped"
	auditEventRealtimeOpened      = "realtime_opened"
	auditEventRealtimeOpenFailure = "realtime_open_failure"
	auditEventRealtimeClosed      = "realtime_closed"
	auditEventListenerMounted     = "listener_mounted"
	auditEventListenerFailure     = "listener_failure"
)

// AuditErrorCode is the stable error label attached to failed audit events.
type AuditErrorCode string

const (
	auditErrSessionFetch    AuditErrorCode = "session_fetch"
	auditErrTeardown        AuditErrorCode = "subscription_teardown"
	auditErrAbsentSession   AuditErrorCode = "absent_session"
	auditErrRealtimeOpen    AuditErrorCode = "realtime_open"
	auditErrListener        AuditErrorCode = "listener_subscribe"
	auditErrEngineClosed    AuditErrorCode = "engine_closed"
	auditErrContextCanceled AuditErrorCode = "canceled"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	req := requestInfoFrom(ctx)
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Route:     req.route,
		IP:        req.ip,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditEventForKind(kind AuthEventKind) string {
	switch kind {
	case AuthEventSignedIn:
		return auditEventSignedIn
	case AuthEventSignedOut:
		return auditEventSignedOut
	case AuthEventTokenRefreshed:
		return auditEventTokenRefreshed
	default:
		return ""
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrSessionFetch):
		return auditErrSessionFetch
	case errors.Is(err, ErrSubscriptionTeardown):
		return auditErrTeardown
	case errors.Is(err, ErrPatchOnAbsentSession):
		return auditErrAbsentSession
	case errors.Is(err, ErrRealtimeOpen):
		return auditErrRealtimeOpen
	case errors.Is(err, ErrListenerSubscribe):
		return auditErrListener
	case errors.Is(err, ErrEngineClosed):
		return auditErrEngineClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrContextCanceled
	default:
		return auditErrInternal
	}
}
