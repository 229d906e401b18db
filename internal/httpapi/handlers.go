package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"crm-softphone/internal/auth"
	"crm-softphone/internal/config"
	"crm-softphone/internal/crm"
	"crm-softphone/internal/ledger"
	"crm-softphone/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return the
// {success, data, error} envelope.
type Handlers struct {
	Auth     *auth.Manager
	Ledger   *ledger.Service
	Contacts *crm.ContactRepo
	Vox      config.VoxConfig
}

func ok(c *gin.Context, data any) {
	if data == nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// --- Auth ---

type loginRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
}

// Login issues a JWT token pair.
//
// NOTE: credential validation belongs to the CRM auth stack; this endpoint
// trusts the upstream session and only mints telephony-scope tokens.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		fail(c, http.StatusInternalServerError, "auth not configured")
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" || req.WorkspaceID == "" {
		fail(c, http.StatusBadRequest, "user_id, workspace_id required")
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.WorkspaceID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "token issuance failed")
		return
	}
	ok(c, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Telephony auth ---

// VoxToken returns the calling credentials the softphone logs in with.
// Password-based by default; a one-time token takes precedence when minted.
func (h Handlers) VoxToken(c *gin.Context) {
	resp := gin.H{"userName": h.Vox.SDKUserName()}
	if h.Vox.OneTimeToken != "" {
		resp["token"] = h.Vox.OneTimeToken
	} else {
		resp["password"] = h.Vox.UserPassword
	}
	ok(c, resp)
}

// VoxConfig returns static calling-feature configuration.
func (h Handlers) VoxConfig(c *gin.Context) {
	ok(c, gin.H{
		"applicationName": h.Vox.SDKApplication(),
		"accountName":     h.Vox.AccountName,
		"sipProxy":        h.Vox.SIPProxy,
	})
}

// --- Calls ---

type initiateCallRequest struct {
	PhoneNumber     string `json:"phoneNumber"`
	ContactID       string `json:"contactId"`
	ContactName     string `json:"contactName"`
	EnableRecording bool   `json:"enableRecording"`
}

func (h Handlers) InitiateCall(c *gin.Context) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		fail(c, http.StatusUnauthorized, "workspace_id required")
		return
	}
	var req initiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PhoneNumber == "" {
		fail(c, http.StatusBadRequest, "phone number is required")
		return
	}

	// Fill the contact name from the CRM when the caller only had an id.
	if req.ContactID != "" && req.ContactName == "" && h.Contacts != nil {
		if contact, err := h.Contacts.GetContact(c.Request.Context(), workspaceID, req.ContactID); err == nil {
			req.ContactName = contact.Name
		}
	}

	rec, err := h.Ledger.Initiate(c.Request.Context(), ledger.InitiateParams{
		WorkspaceID:     workspaceID,
		PhoneNumber:     req.PhoneNumber,
		ContactID:       req.ContactID,
		ContactName:     req.ContactName,
		Direction:       "outbound",
		EnableRecording: req.EnableRecording,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidArgument) {
			fail(c, http.StatusBadRequest, "invalid request")
			return
		}
		logger.FromGin(c).Error("call initiate failed", "err", err)
		fail(c, http.StatusInternalServerError, "failed to initiate call")
		return
	}
	ok(c, gin.H{
		"callId":      rec.ID,
		"phoneNumber": rec.PhoneNumber,
		"contactId":   rec.ContactID,
		"contactName": rec.ContactName,
	})
}

type callConnectedRequest struct {
	CallID    string    `json:"callId"`
	StartTime time.Time `json:"startTime"`
}

func (h Handlers) CallConnected(c *gin.Context) {
	var req callConnectedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallID == "" {
		fail(c, http.StatusBadRequest, "callId is required")
		return
	}
	if err := h.Ledger.MarkConnected(c.Request.Context(), req.CallID, req.StartTime); err != nil {
		h.updateError(c, err, "call connected update failed")
		return
	}
	ok(c, nil)
}

type callEndedRequest struct {
	CallID   string    `json:"callId"`
	EndTime  time.Time `json:"endTime"`
	Duration int       `json:"duration"`
}

func (h Handlers) CallEnded(c *gin.Context) {
	var req callEndedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallID == "" {
		fail(c, http.StatusBadRequest, "callId is required")
		return
	}
	if err := h.Ledger.MarkEnded(c.Request.Context(), req.CallID, req.EndTime, req.Duration); err != nil {
		h.updateError(c, err, "call ended update failed")
		return
	}
	ok(c, nil)
}

func (h Handlers) SetMute(c *gin.Context) {
	var req struct {
		Muted bool `json:"muted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.Ledger.SetMute(c.Request.Context(), c.Param("call_id"), req.Muted); err != nil {
		h.updateError(c, err, "mute update failed")
		return
	}
	ok(c, nil)
}

func (h Handlers) SetHold(c *gin.Context) {
	var req struct {
		OnHold bool `json:"onHold"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.Ledger.SetHold(c.Request.Context(), c.Param("call_id"), req.OnHold); err != nil {
		h.updateError(c, err, "hold update failed")
		return
	}
	ok(c, nil)
}

func (h Handlers) Transfer(c *gin.Context) {
	var req struct {
		TransferTo string `json:"transferTo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.TransferTo == "" {
		fail(c, http.StatusBadRequest, "transferTo is required")
		return
	}
	if err := h.Ledger.Transfer(c.Request.Context(), c.Param("call_id"), req.TransferTo); err != nil {
		h.updateError(c, err, "transfer update failed")
		return
	}
	ok(c, nil)
}

func (h Handlers) AddNote(c *gin.Context) {
	var req struct {
		Text      string    `json:"text"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		fail(c, http.StatusBadRequest, "text is required")
		return
	}
	note, err := h.Ledger.AddNote(c.Request.Context(), c.Param("call_id"), req.Text, req.Timestamp)
	if err != nil {
		h.updateError(c, err, "note insert failed")
		return
	}
	ok(c, note)
}

func (h Handlers) SetRecording(c *gin.Context) {
	var req struct {
		Action string `json:"action"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || (req.Action != "start" && req.Action != "stop") {
		fail(c, http.StatusBadRequest, "action must be start or stop")
		return
	}
	if err := h.Ledger.SetRecording(c.Request.Context(), c.Param("call_id"), req.Action == "start"); err != nil {
		h.updateError(c, err, "recording update failed")
		return
	}
	ok(c, nil)
}

func (h Handlers) GetCall(c *gin.Context) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		fail(c, http.StatusUnauthorized, "workspace_id required")
		return
	}
	detail, err := h.Ledger.GetCall(c.Request.Context(), workspaceID, c.Param("call_id"))
	if err != nil {
		h.updateError(c, err, "call lookup failed")
		return
	}
	ok(c, detail)
}

func (h Handlers) DeleteCall(c *gin.Context) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		fail(c, http.StatusUnauthorized, "workspace_id required")
		return
	}
	if err := h.Ledger.DeleteCall(c.Request.Context(), workspaceID, c.Param("call_id")); err != nil {
		h.updateError(c, err, "call delete failed")
		return
	}
	ok(c, nil)
}

// EndCall force-ends a call from the dashboard; duration comes from the
// server clock and the stored start time.
func (h Handlers) EndCall(c *gin.Context) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		fail(c, http.StatusUnauthorized, "workspace_id required")
		return
	}
	duration, err := h.Ledger.EndByID(c.Request.Context(), workspaceID, c.Param("call_id"))
	if err != nil {
		h.updateError(c, err, "call end failed")
		return
	}
	ok(c, gin.H{"duration": duration})
}

func (h Handlers) CallHistory(c *gin.Context) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		fail(c, http.StatusUnauthorized, "workspace_id required")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	records, err := h.Ledger.History(c.Request.Context(), ledger.HistoryParams{
		WorkspaceID: workspaceID,
		ContactID:   c.Query("contact_id"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		logger.FromGin(c).Error("call history failed", "err", err)
		fail(c, http.StatusInternalServerError, "history lookup failed")
		return
	}
	ok(c, records)
}

func (h Handlers) AnalyticsSummary(c *gin.Context) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		fail(c, http.StatusUnauthorized, "workspace_id required")
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t
		}
	}

	summary, err := h.Ledger.Summary(c.Request.Context(), workspaceID, from, to)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidArgument) {
			fail(c, http.StatusBadRequest, "invalid time range")
			return
		}
		logger.FromGin(c).Error("analytics summary failed", "err", err)
		fail(c, http.StatusInternalServerError, "summary failed")
		return
	}
	ok(c, summary)
}

// --- Webhooks ---

// CallEventsWebhook ingests vendor-originated status pushes. Public
// endpoint; signature validation belongs in front of it in production.
func (h Handlers) CallEventsWebhook(c *gin.Context) {
	var ev ledger.WebhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.Ledger.ApplyWebhook(c.Request.Context(), ev); err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidArgument):
			fail(c, http.StatusBadRequest, "invalid event")
		case errors.Is(err, ledger.ErrNotFound):
			// A push for a call the ledger never saw; acknowledge so the
			// vendor stops retrying.
			logger.FromGin(c).Warn("webhook for unknown call", "event", ev.Event, "call_id", ev.Call.CallID)
			ok(c, nil)
		default:
			logger.FromGin(c).Error("webhook apply failed", "err", err)
			fail(c, http.StatusInternalServerError, "webhook apply failed")
		}
		return
	}
	ok(c, gin.H{"event": ev.Event, "callId": ev.Call.CallID})
}

func (h Handlers) updateError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument):
		fail(c, http.StatusBadRequest, "invalid request")
	case errors.Is(err, ledger.ErrNotFound):
		fail(c, http.StatusNotFound, "call not found")
	default:
		logger.FromGin(c).Error(logMsg, "err", err)
		fail(c, http.StatusInternalServerError, "update failed")
	}
}
