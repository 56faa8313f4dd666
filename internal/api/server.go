package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"SmartAccount-Chain/internal/account"
	xerrors "SmartAccount-Chain/internal/errors"
	"SmartAccount-Chain/internal/observability/metrics"
	"SmartAccount-Chain/internal/policy/multisig"
)

// Server 负责暴露 REST 接口，供外部驱动意图生命周期。
type Server struct {
	addr    string
	service *account.Service
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, svc *account.Service) *Server {
	return &Server{addr: addr, service: svc}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 返回完整的路由表，测试可以直接挂在 httptest 上。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/intents", instrument("propose", s.handlePropose))
	mux.Handle("GET /api/v1/intents", instrument("list_intents", s.handleListIntents))
	mux.Handle("GET /api/v1/intents/{key}", instrument("get_intent", s.handleGetIntent))
	mux.Handle("DELETE /api/v1/intents/{key}", instrument("delete_expired", s.handleDeleteExpired))
	mux.Handle("POST /api/v1/intents/{key}/approve", instrument("approve", s.handleApprove))
	mux.Handle("POST /api/v1/intents/{key}/disapprove", instrument("disapprove", s.handleDisapprove))
	mux.Handle("POST /api/v1/intents/{key}/execute", instrument("execute", s.handleExecute))
	mux.Handle("GET /api/v1/history", instrument("history", s.handleHistory))
	mux.Handle("GET /api/v1/stats", instrument("stats", s.handleStats))
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

type proposeBody struct {
	Account string `json:"account"`
	account.ProposeRequest
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var body proposeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	addr, err := parseAddress(body.Account)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.service.Propose(r.Context(), addr, body.ProposeRequest); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.service.Intent(addr, body.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleListIntents(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, err)
		return
	}
	views, err := s.service.Intents(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.service.Intent(addr, r.PathValue("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type voteBody struct {
	Account string `json:"account"`
	Caller  string `json:"caller"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.handleVote(w, r, s.service.Approve)
}

func (s *Server) handleDisapprove(w http.ResponseWriter, r *http.Request) {
	s.handleVote(w, r, s.service.Disapprove)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request, vote func(context.Context, common.Address, common.Address, string) error) {
	var body voteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	addr, err := parseAddress(body.Account)
	if err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(body.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := vote(r.Context(), addr, caller, r.PathValue("key")); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.service.Intent(addr, r.PathValue("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type executeBody struct {
	Account string `json:"account"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var body executeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	addr, err := parseAddress(body.Account)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.service.Execute(r.Context(), addr, r.PathValue("key")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "executed"})
}

func (s *Server) handleDeleteExpired(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.service.DeleteExpired(r.Context(), addr, r.PathValue("key")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	records, err := s.service.History(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.service.Stats(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, xerrors.New(xerrors.CodeInvalidArgument, "账户地址不合法")
	}
	return common.HexToAddress(raw), nil
}

type errorBody struct {
	Code      xerrors.Code `json:"code"`
	Message   string       `json:"message"`
	Retryable bool         `json:"retryable"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]errorBody{"error": {
		Code:      xerrors.CodeOf(err),
		Message:   err.Error(),
		Retryable: xerrors.RetryableError(err),
	}})
}

// statusOf 把引擎错误码折算成 HTTP 状态码。时间未到类错误返回 409，
// 提示调用方稍后重试而非修改请求。
func statusOf(err error) int {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument,
		account.CodeNoExecutionTime,
		account.CodeTimesNotAscending:
		return http.StatusBadRequest
	case xerrors.CodeNotFound, account.CodeIntentNotFound:
		return http.StatusNotFound
	case xerrors.CodePermissionDenied,
		account.CodeWrongAccount,
		account.CodeWrongWitness,
		account.CodeNotDep,
		account.CodeNotExtension,
		multisig.CodeNotMember:
		return http.StatusForbidden
	case xerrors.CodeConflict,
		account.CodeKeyAlreadyExists,
		account.CodeObjectAlreadyLocked,
		account.CodeObjectNotLocked,
		account.CodeDepAlreadyExists,
		account.CodeCantBeExecutedYet,
		account.CodeHasntExpired,
		account.CodeCantBeRemovedYet,
		account.CodeActionsNotEmpty,
		multisig.CodeAlreadyApproved,
		multisig.CodeNotApproved,
		multisig.CodeThresholdNotReached:
		return http.StatusConflict
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument 为处理函数挂上请求计数与耗时直方图。
func instrument(name string, handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		handler(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	})
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
