package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/archethic-foundation/crypto-accumulator/accumulator"
	"github.com/archethic-foundation/crypto-accumulator/logging"
	"github.com/archethic-foundation/crypto-accumulator/store"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Address        string
	MetricsAddress string
	APIKey         string
	MaxBodyBytes   int64
}

const defaultMaxBodyBytes = 1 << 16

type proofKind string

const (
	membershipKind    proofKind = "membership"
	nonMembershipKind proofKind = "non_membership"
)

// service is the state shared by all handlers.
type service struct {
	registry *Registry
	exports  store.ExportStore
	maxBody  int64
}

type healthHandler struct{}

func (handler healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type keysHandler struct {
	svc *service
}

func (handler keysHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	timer := StartOperationTimer("generate_key")

	sk, err := accumulator.GenerateKey()
	if err != nil {
		fail(w, timer, engineError(err))
		return
	}
	defer sk.Zero()
	raw := sk.Bytes()
	defer clear(raw[:])

	timer.ObserveOutcome("ok")
	writeJSON(w, http.StatusCreated, map[string]string{"secretKey": encodeHex(raw[:])})
}

type createAccumulatorRequest struct {
	SecretKey string `json:"secretKey"`
}

type accumulatorsHandler struct {
	svc *service
}

func (handler accumulatorsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	timer := StartOperationTimer("create_accumulator")

	var req createAccumulatorRequest
	if e := handler.svc.readJSON(w, r, &req); e != nil {
		fail(w, timer, e)
		return
	}
	raw, e := decodeHex("secretKey", req.SecretKey)
	if e != nil {
		fail(w, timer, e)
		return
	}
	sk, err := accumulator.SecretKeyFromBytes(raw)
	clear(raw)
	if err != nil {
		fail(w, timer, engineError(err))
		return
	}
	defer sk.Zero()

	h, err := handler.svc.registry.Create(sk)
	if err != nil {
		fail(w, timer, engineError(err))
		return
	}

	logging.Logger().Info().
		Str("accumulator_id", h.ID).
		Int("active_handles", handler.svc.registry.Len()).
		Msg("Accumulator created")

	timer.ObserveOutcome("ok")
	writeJSON(w, http.StatusCreated, map[string]string{"id": h.ID})
}

type accumulatorHandler struct {
	svc *service
}

func (handler accumulatorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	timer := StartOperationTimer("drop_accumulator")
	id := r.PathValue("id")

	if err := handler.svc.registry.Drop(id); err != nil {
		fail(w, timer, engineError(err))
		return
	}
	if handler.svc.exports != nil {
		if err := handler.svc.exports.Delete(r.Context(), id); err != nil {
			logging.Logger().Warn().Err(err).Str("accumulator_id", id).Msg("Failed to remove published export")
		}
	}

	logging.Logger().Info().Str("accumulator_id", id).Msg("Accumulator dropped")
	timer.ObserveOutcome("ok")
	w.WriteHeader(http.StatusNoContent)
}

type digestRequest struct {
	Digest string `json:"digest"`
}

type elementsHandler struct {
	svc *service
}

func (handler elementsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	timer := StartOperationTimer("add_element")

	h, digest, e := handler.svc.handleAndDigest(w, r)
	if e != nil {
		fail(w, timer, e)
		return
	}

	var size int
	err := h.Do(func(acc *accumulator.Accumulator) error {
		if err := acc.AddElement(digest); err != nil {
			return err
		}
		size = acc.Len()
		return nil
	})
	if err != nil {
		fail(w, timer, engineError(err))
		return
	}

	logging.Logger().Debug().
		Str("accumulator_id", h.ID).
		Str("digest", logging.ShortHex(digest)).
		Int("size", size).
		Msg("Element added")

	timer.ObserveOutcome("ok")
	writeJSON(w, http.StatusOK, map[string]int{"size": size})
}

type proofResponse struct {
	Proof string `json:"proof"`
	Nonce string `json:"nonce"`
	Epoch uint64 `json:"epoch"`
}

type proofsHandler struct {
	svc  *service
	kind proofKind
}

func (handler proofsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	timer := StartOperationTimer(string(handler.kind) + "_proof")

	h, digest, e := handler.svc.handleAndDigest(w, r)
	if e != nil {
		fail(w, timer, e)
		return
	}

	var resp proofResponse
	err := h.Do(func(acc *accumulator.Accumulator) error {
		var encoded []byte
		var nonce accumulator.Nonce
		switch handler.kind {
		case nonMembershipKind:
			proof, n, err := acc.NonMembershipProof(digest)
			if err != nil {
				return err
			}
			encoded, nonce, resp.Epoch = proof.Bytes(), n, proof.Epoch
		default:
			proof, n, err := acc.MembershipProof(digest)
			if err != nil {
				return err
			}
			encoded, nonce, resp.Epoch = proof.Bytes(), n, proof.Epoch
		}
		resp.Proof = encodeHex(encoded)
		resp.Nonce = encodeHex(nonce[:])
		RecordProofSize(string(handler.kind), len(encoded))
		return nil
	})
	if err != nil {
		fail(w, timer, engineError(err))
		return
	}

	logging.Logger().Info().
		Str("accumulator_id", h.ID).
		Str("kind", string(handler.kind)).
		Str("digest", logging.ShortHex(digest)).
		Uint64("epoch", resp.Epoch).
		Msg("Proof issued")

	timer.ObserveOutcome("ok")
	writeJSON(w, http.StatusOK, resp)
}

type exportHandler struct {
	svc *service
}

func (handler exportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	timer := StartOperationTimer("export")

	h, err := handler.svc.registry.Get(r.PathValue("id"))
	if err != nil {
		fail(w, timer, engineError(err))
		return
	}

	// The store write stays under the handle lock: a dropped handle is never
	// published again.
	var data []byte
	published := false
	err = h.Do(func(acc *accumulator.Accumulator) error {
		data = acc.Export().Bytes()
		if handler.svc.exports == nil {
			return nil
		}
		if err := handler.svc.exports.Put(r.Context(), h.ID, data); err != nil {
			ExportPublishErrors.Inc()
			logging.Logger().Error().Err(err).Str("accumulator_id", h.ID).Msg("Failed to publish export")
			return nil
		}
		published = true
		return nil
	})
	if err != nil {
		fail(w, timer, engineError(err))
		return
	}

	timer.ObserveOutcome("ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"export":    encodeHex(data),
		"published": published,
	})
}

type verifyRequest struct {
	Export        string `json:"export,omitempty"`
	AccumulatorID string `json:"accumulatorId,omitempty"`
	Proof         string `json:"proof"`
	Nonce         string `json:"nonce"`
	Digest        string `json:"digest,omitempty"`
}

type verifyHandler struct {
	svc  *service
	kind proofKind
}

func (handler verifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	timer := StartOperationTimer("verify_" + string(handler.kind))

	var req verifyRequest
	if e := handler.svc.readJSON(w, r, &req); e != nil {
		fail(w, timer, e)
		return
	}

	export, e := handler.svc.resolveExport(r.Context(), &req)
	if e != nil {
		fail(w, timer, e)
		return
	}
	rawProof, e := decodeHex("proof", req.Proof)
	if e != nil {
		fail(w, timer, e)
		return
	}
	rawNonce, e := decodeHex("nonce", req.Nonce)
	if e != nil {
		fail(w, timer, e)
		return
	}
	nonce, err := accumulator.ParseNonce(rawNonce)
	if err != nil {
		fail(w, timer, engineError(err))
		return
	}
	var digest []byte
	if req.Digest != "" {
		if digest, e = decodeHex("digest", req.Digest); e != nil {
			fail(w, timer, e)
			return
		}
	}

	valid, err := handler.verify(export, rawProof, nonce, digest)
	if err != nil {
		fail(w, timer, engineError(err))
		return
	}
	RecordVerification(string(handler.kind), valid)

	timer.ObserveOutcome("ok")
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (handler verifyHandler) verify(export *accumulator.PublicExport, rawProof []byte, nonce accumulator.Nonce, digest []byte) (bool, error) {
	switch handler.kind {
	case nonMembershipKind:
		proof, err := accumulator.ParseNonMembershipProof(rawProof)
		if err != nil {
			return false, err
		}
		if digest != nil {
			return accumulator.VerifyNonMembershipOf(export, proof, nonce, digest)
		}
		return accumulator.VerifyNonMembership(export, proof, nonce)
	default:
		proof, err := accumulator.ParseMembershipProof(rawProof)
		if err != nil {
			return false, err
		}
		if digest != nil {
			return accumulator.VerifyMembershipOf(export, proof, nonce, digest)
		}
		return accumulator.VerifyMembership(export, proof, nonce)
	}
}

// resolveExport takes the export from the request, or from the export store
// when only an accumulator id is given.
func (svc *service) resolveExport(ctx context.Context, req *verifyRequest) (*accumulator.PublicExport, *Error) {
	var raw []byte
	switch {
	case req.Export != "":
		var e *Error
		if raw, e = decodeHex("export", req.Export); e != nil {
			return nil, e
		}
	case req.AccumulatorID != "":
		if svc.exports == nil {
			return nil, notFoundError("export_not_found", "no export store configured")
		}
		var err error
		if raw, err = svc.exports.Get(ctx, req.AccumulatorID); err != nil {
			return nil, engineError(err)
		}
	default:
		return nil, malformedBodyError(errors.New("export or accumulatorId is required"))
	}

	export, err := accumulator.ParsePublicExport(raw)
	if err != nil {
		return nil, engineError(err)
	}
	return export, nil
}

func (svc *service) handleAndDigest(w http.ResponseWriter, r *http.Request) (*Handle, []byte, *Error) {
	h, err := svc.registry.Get(r.PathValue("id"))
	if err != nil {
		return nil, nil, engineError(err)
	}
	var req digestRequest
	if e := svc.readJSON(w, r, &req); e != nil {
		return nil, nil, e
	}
	digest, e := decodeHex("digest", req.Digest)
	if e != nil {
		return nil, nil, e
	}
	return h, digest, nil
}

func (svc *service) readJSON(w http.ResponseWriter, r *http.Request, v any) *Error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, svc.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return malformedBodyError(err)
	}
	return nil
}

func fail(w http.ResponseWriter, timer *MetricTimer, e *Error) {
	timer.ObserveOutcome(e.Code)
	e.send(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger().Error().Err(err).Msg("error writing response")
	}
}

func encodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func decodeHex(field, s string) ([]byte, *Error) {
	if s == "" {
		return nil, malformedBodyError(fmt.Errorf("%s is required", field))
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, malformedBodyError(fmt.Errorf("%s: %w", field, err))
	}
	return b, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func logRequest(_ io.Writer, params handlers.LogFormatterParams) {
	logging.Logger().Info().
		Str("request_id", params.Request.Header.Get("X-Request-ID")).
		Str("method", params.Request.Method).
		Str("path", params.URL.Path).
		Int("status", params.StatusCode).
		Int("size", params.Size).
		Dur("elapsed", time.Since(params.TimeStamp)).
		Msg("request")
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	logging.Logger().Error().Msg(fmt.Sprint(v...))
}

// NewHandler builds the API handler with authentication, request logging,
// panic recovery and CORS.
func NewHandler(config *Config, registry *Registry, exports store.ExportStore) http.Handler {
	maxBody := config.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	svc := &service{registry: registry, exports: exports, maxBody: maxBody}

	mux := http.NewServeMux()
	mux.Handle("/health", healthHandler{})
	mux.Handle("/keys", keysHandler{svc: svc})
	mux.Handle("/accumulators", accumulatorsHandler{svc: svc})
	mux.Handle("/accumulators/{id}", accumulatorHandler{svc: svc})
	mux.Handle("/accumulators/{id}/elements", elementsHandler{svc: svc})
	mux.Handle("/accumulators/{id}/proofs", proofsHandler{svc: svc, kind: membershipKind})
	mux.Handle("/accumulators/{id}/non-membership-proofs", proofsHandler{svc: svc, kind: nonMembershipKind})
	mux.Handle("/accumulators/{id}/export", exportHandler{svc: svc})
	mux.Handle("/verify", verifyHandler{svc: svc, kind: membershipKind})
	mux.Handle("/verify/non-membership", verifyHandler{svc: svc, kind: nonMembershipKind})

	var handler http.Handler = conditionalAuthMiddleware(config.APIKey)(mux)
	handler = requestIDMiddleware(handler)
	handler = handlers.CustomLoggingHandler(io.Discard, handler, logRequest)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(false),
	)(handler)

	corsHandler := handlers.CORS(
		handlers.AllowedHeaders([]string{
			"X-Requested-With",
			"Content-Type",
			"Authorization",
			"X-API-Key",
			"X-Request-ID",
		}),
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
	)
	return corsHandler(handler)
}

// Run starts the API server and, if an address is configured, the metrics
// server.
func Run(config *Config, registry *Registry, exports store.ExportStore) RunningJob {
	var jobs []RunningJob

	if config.MetricsAddress != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: config.MetricsAddress, Handler: metricsMux, ReadHeaderTimeout: 10 * time.Second}
		jobs = append(jobs, spawnServerJob(metricsServer, "metrics server"))
		logging.Logger().Info().Str("addr", config.MetricsAddress).Msg("metrics server started")
	}

	apiServer := &http.Server{
		Addr:              config.Address,
		Handler:           NewHandler(config, registry, exports),
		ReadHeaderTimeout: 10 * time.Second,
	}
	jobs = append(jobs, spawnServerJob(apiServer, "accumulator server"))

	logging.Logger().Info().
		Str("addr", config.Address).
		Bool("auth_enabled", config.APIKey != "").
		Bool("export_store", exports != nil).
		Msg("accumulator server started")

	return CombineJobs(jobs...)
}

func spawnServerJob(server *http.Server, label string) RunningJob {
	start := func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("%s failed: %s", label, err))
		}
	}
	shutdown := func() {
		logging.Logger().Info().Msgf("shutting down %s", label)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(ctx)
		if err != nil {
			logging.Logger().Error().Err(err).Msgf("error when shutting down %s", label)
		}
		logging.Logger().Info().Msgf("%s shut down", label)
	}
	return SpawnJob(start, shutdown)
}
