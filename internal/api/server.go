package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"LuminYield/internal/auth"
	"LuminYield/internal/chat"
	xerrors "LuminYield/internal/errors"
	"LuminYield/internal/observability/metrics"
	"LuminYield/internal/router"
	"LuminYield/internal/session"
)

// 网关等待路由回复的默认超时。
const defaultQueryTimeout = 30 * time.Second

// 合成用户地址的前缀，每个 HTTP 查询使用独立地址接收回复。
const gatewayAddressPrefix = "agent://luminyield/gateway/"

// Server 负责暴露 REST 接口：把查询作为合成用户注入总线并等待
// 路由回来的答复，另外提供会话列表与统计。
type Server struct {
	addr       string
	bus        chat.Bus
	routerAddr string
	correlator *router.Correlator
	authSvc    *auth.Service
	timeout    time.Duration
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, bus chat.Bus, routerAddr string, correlator *router.Correlator, authSvc *auth.Service) *Server {
	return &Server{
		addr:       addr,
		bus:        bus,
		routerAddr: routerAddr,
		correlator: correlator,
		authSvc:    authSvc,
		timeout:    defaultQueryTimeout,
	}
}

// Handler 返回完整的路由表，测试可直接挂到 httptest 上。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	guard := s.authSvc.Middleware("")

	mux.Handle("/api/v1/queries", guard(s.instrument("queries", http.HandlerFunc(s.handleQueries))))
	mux.Handle("/api/v1/sessions", guard(s.instrument("sessions", http.HandlerFunc(s.handleSessions))))
	mux.Handle("/api/v1/sessions/stats", guard(s.instrument("session_stats", http.HandlerFunc(s.handleSessionStats))))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
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

type queryRequest struct {
	Query          string `json:"query"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

type queryResponse struct {
	Reply    string            `json:"reply"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		http.Error(w, "query 不能为空", http.StatusBadRequest)
		return
	}

	timeout := s.timeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	reply, err := s.submitQuery(ctx, query)
	if err != nil {
		if xerrors.CodeOf(err) == xerrors.CodeTimeout {
			http.Error(w, "等待回复超时", http.StatusGatewayTimeout)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(queryResponse{
		Reply:    reply.Text(),
		Metadata: reply.Metadata(),
	})
}

// submitQuery 以一次性的合成用户地址发出查询，等待路由回投的第一条
// 非回执消息。超时返回 CodeTimeout。
func (s *Server) submitQuery(ctx context.Context, query string) (chat.Message, error) {
	replyAddr := gatewayAddressPrefix + uuid.NewString()
	replyCh := make(chan chat.Message, 1)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = s.bus.Subscribe(subCtx, replyAddr, 1, func(_ context.Context, msg chat.Message) error {
			if msg.IsAcknowledgement() {
				return nil
			}
			select {
			case replyCh <- msg:
			default:
			}
			return nil
		})
	}()

	outbound := chat.NewTextMessage(replyAddr, query, nil)
	if err := s.bus.Send(ctx, s.routerAddr, outbound); err != nil {
		return chat.Message{}, xerrors.Wrap(xerrors.CodeBusFailure, err, "注入查询失败")
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return chat.Message{}, xerrors.New(xerrors.CodeTimeout, "等待路由回复超时")
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}

	var opts []session.ListOption
	query := r.URL.Query()
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			opts = append(opts, session.WithLimit(parsed))
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			opts = append(opts, session.WithOffset(parsed))
		}
	}
	if raw := query.Get("query_type"); raw != "" {
		opts = append(opts, session.WithQueryTypes(strings.Split(raw, ",")...))
	}
	if raw := query.Get("specialist"); raw != "" {
		opts = append(opts, session.WithSpecialists(strings.Split(raw, ",")...))
	}
	if raw := query.Get("q"); raw != "" {
		opts = append(opts, session.WithQuery(raw))
	}

	sessions := s.correlator.List(opts...)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sessions)
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.correlator.Stats())
}

// instrument 记录 HTTP 请求指标。
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
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
