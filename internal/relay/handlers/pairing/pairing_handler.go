package pairing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgersync/ledgersync/internal/relay/email"
	"github.com/ledgersync/ledgersync/internal/relay/handlers/api"
	"github.com/ledgersync/ledgersync/internal/relay/middlewares"
	"github.com/ledgersync/ledgersync/internal/relay/pairing"
)

const notifyTimeout = 30 * time.Second

type PairingHandler struct {
	registry *pairing.Registry
	mailer   email.Sender
}

func New(registry *pairing.Registry, mailer email.Sender) *PairingHandler {
	return &PairingHandler{registry: registry, mailer: mailer}
}

func (h *PairingHandler) Create(ctx *gin.Context) {
	var req CreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	sess, err := h.registry.Create(middlewares.User(ctx), &pairing.CreateParams{
		IssuerPublicKey:  req.IssuerPublicKey,
		IssuerDeviceID:   req.IssuerDeviceID,
		IssuerDeviceName: req.IssuerDeviceName,
	})
	if err != nil {
		abortPairingError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusCreated, &CreateResponse{
		PairingID:       sess.ID,
		Code:            sess.Code,
		IssuerPublicKey: sess.IssuerPublicKey,
		ExpiresAt:       sess.ExpiresAt,
	})
}

func (h *PairingHandler) Resolve(ctx *gin.Context) {
	var req ResolveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	sess, err := h.registry.Resolve(middlewares.User(ctx), req.Code)
	if err != nil {
		abortPairingError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &ResolveResponse{
		PairingID:        sess.ID,
		IssuerPublicKey:  sess.IssuerPublicKey,
		IssuerDeviceID:   sess.IssuerDeviceID,
		IssuerDeviceName: sess.IssuerDeviceName,
		ExpiresAt:        sess.ExpiresAt,
	})
}

func (h *PairingHandler) Claim(ctx *gin.Context) {
	var req ClaimRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	sess, err := h.registry.Claim(middlewares.User(ctx), ctx.Param("id"), &pairing.ClaimParams{
		Code:              req.Code,
		ClaimerPublicKey:  req.ClaimerPublicKey,
		ClaimerDeviceID:   req.ClaimerDeviceID,
		ClaimerDeviceName: req.ClaimerDeviceName,
	})
	if err != nil {
		abortPairingError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, statusResponse(sess))
}

func (h *PairingHandler) Status(ctx *gin.Context) {
	sess, err := h.registry.Status(middlewares.User(ctx), ctx.Param("id"))
	if err != nil {
		abortPairingError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, statusResponse(sess))
}

func (h *PairingHandler) Complete(ctx *gin.Context) {
	var req CompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	account := middlewares.User(ctx)
	sess, err := h.registry.Complete(account, ctx.Param("id"), req.EncryptedKeyBundle)
	if err != nil {
		abortPairingError(ctx, err)
		return
	}

	go h.notifyPaired(account, sess)
	ctx.PureJSON(http.StatusOK, statusResponse(sess))
}

func (h *PairingHandler) Bundle(ctx *gin.Context) {
	bundle, err := h.registry.Bundle(middlewares.User(ctx), ctx.Param("id"))
	if err != nil {
		abortPairingError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &BundleResponse{EncryptedKeyBundle: bundle})
}

func (h *PairingHandler) Cancel(ctx *gin.Context) {
	if err := h.registry.Cancel(middlewares.User(ctx), ctx.Param("id")); err != nil {
		abortPairingError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *PairingHandler) notifyPaired(account string, sess *pairing.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := h.mailer.Send(ctx, email.DevicePairedEmail(account, sess.ClaimerDeviceName, sess.IssuerDeviceName)); err != nil {
		slog.Warn("device paired notice", "pairingId", sess.ID, "error", err)
	}
}

func statusResponse(sess *pairing.Session) *StatusResponse {
	return &StatusResponse{
		Claimed:           sess.Claimed(),
		ClaimerPublicKey:  sess.ClaimerPublicKey,
		ClaimerDeviceID:   sess.ClaimerDeviceID,
		ClaimerDeviceName: sess.ClaimerDeviceName,
		Completed:         sess.Completed(),
		ExpiresAt:         sess.ExpiresAt,
	}
}

func abortPairingError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, pairing.ErrNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodePairingNotFound, err)
	case errors.Is(err, pairing.ErrExpired):
		api.AbortWithError(ctx, http.StatusGone, api.CodePairingExpired, err)
	case errors.Is(err, pairing.ErrCanceled):
		api.AbortWithError(ctx, http.StatusGone, api.CodePairingCanceled, err)
	case errors.Is(err, pairing.ErrAlreadyTaken):
		api.AbortWithError(ctx, http.StatusConflict, api.CodePairingAlreadyTaken, err)
	case errors.Is(err, pairing.ErrNotClaimed):
		api.AbortWithError(ctx, http.StatusConflict, api.CodePairingNotClaimed, err)
	case errors.Is(err, pairing.ErrInvalid):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
	}
}
