// Package webhook serves signed jiraSendBuildInfo invocations over HTTP.
package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jira-jenkins-integ/internal/buildinfo"
	"github.com/jira-jenkins-integ/internal/step"
)

// HeaderSignature carries the hex HMAC-SHA256 of the request body, optionally
// prefixed with "sha256=".
const HeaderSignature = "X-Signature"

const maxBodyBytes = 1 << 20

// Invocation is the body of a step call.
type Invocation struct {
	Site   string                `json:"site"`
	Branch string                `json:"branch"`
	Run    buildinfo.RunMetadata `json:"run"`
}

// Result is returned to the caller: the per-site responses and the console output
// the step produced.
type Result struct {
	Responses []buildinfo.Response `json:"responses"`
	Console   string               `json:"console,omitempty"`
}

// Handler runs the step for each valid invocation.
type Handler struct {
	sender step.Sender
	logger *slog.Logger
	secret string
	debug  bool
}

// New creates a handler. An empty secret disables signature checks.
func New(sender step.Sender, logger *slog.Logger, secret string, debug bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sender: sender,
		logger: logger,
		secret: secret,
		debug:  debug,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("read invocation body", slog.String("error", err.Error()))
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if h.secret != "" {
		if err := VerifySignature(body, r.Header.Get(HeaderSignature), h.secret); err != nil {
			h.logger.Warn("invalid invocation signature", slog.String("error", err.Error()))
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var inv Invocation
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&inv); err != nil {
		h.logger.Warn("decode invocation", slog.String("error", err.Error()))
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	var console bytes.Buffer
	exec := step.NewExecution(
		step.Step{Site: inv.Site, Branch: inv.Branch},
		&step.StaticContext{Out: &console, Metadata: inv.Run},
		h.sender,
		h.debug,
	)

	responses, err := exec.Run(r.Context())
	if err != nil {
		if errors.Is(err, buildinfo.ErrMissingRunInfo) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("run step", slog.String("error", err.Error()))
		http.Error(w, "step failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("build info dispatched",
		slog.String("job", inv.Run.JobName),
		slog.Int64("build", inv.Run.BuildNumber),
		slog.Int("sites", len(responses)),
		slog.Bool("failed", buildinfo.AnyFailure(responses)),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Result{Responses: responses, Console: console.String()})
}

// VerifySignature checks signature against the HMAC-SHA256 of payload.
func VerifySignature(payload []byte, signature, secret string) error {
	if signature == "" {
		return fmt.Errorf("missing signature header")
	}
	signature = normalizeSignature(signature)
	expected := ComputeSignature(payload, secret)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// ComputeSignature returns the hex HMAC-SHA256 of payload.
func ComputeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func normalizeSignature(sig string) string {
	s := strings.TrimSpace(sig)
	return strings.ToLower(strings.TrimPrefix(s, "sha256="))
}
