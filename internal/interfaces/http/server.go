package httpinterface

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/transferd-network/transferd/internal/core/application"
	"github.com/transferd-network/transferd/internal/core/domain"
	"github.com/transferd-network/transferd/pkg/ledger"
	"github.com/transferd-network/transferd/pkg/nodepool"
	"github.com/transferd-network/transferd/pkg/wallet"
)

const adminTokenHeader = "X-Admin-Token"

// ServerOpts is the struct given to the NewServer factory.
type ServerOpts struct {
	Addr      string
	Transfers *application.TransferService
	Nodes     *application.NodeService
	CSP       *CSPBuilder
}

// Server is the JSON interface of the daemon: transfer submission for
// users, node management for admins.
type Server struct {
	transfers *application.TransferService
	nodes     *application.NodeService
	csp       *CSPBuilder
	server    *http.Server
}

// NewServer returns a server listening on opts.Addr once started.
func NewServer(opts ServerOpts) *Server {
	s := &Server{
		transfers: opts.Transfers,
		nodes:     opts.Nodes,
		csp:       opts.CSP,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/transfers", s.handleTransfers)
	mux.HandleFunc("/v1/nodes", s.handleNodes)

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.withPolicy(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Infof("http interface is listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for inflight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// withPolicy stamps every response with the current security policy and
// makes the presented admin token available to the authorizer.
func (s *Server) withPolicy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.csp != nil {
			w.Header().Set("Content-Security-Policy", s.csp.Header())
		}
		if token := r.Header.Get(adminTokenHeader); token != "" {
			r = r.WithContext(WithAdminToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type transferRequest struct {
	UserID      string `json:"user_id"`
	Password    string `json:"password"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Denom       string `json:"denom"`
	Amount      string `json:"amount"`
}

type transferResponse struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req := transferRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.transfers.SendTransfer(r.Context(), application.SendTransferRequest{
		UserID:      req.UserID,
		Password:    req.Password,
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		Coin:        wallet.Coin{Denom: req.Denom, Amount: req.Amount},
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrRequestTimedOut):
			// broadcast but unconfirmed, the hash lets the caller follow up
			writeJSON(w, http.StatusAccepted, transferResponse{
				TxHash: res.TxHash,
				Status: string(res.Status),
			})
		case errors.Is(err, domain.ErrInvalidPassword):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, domain.ErrAccountNotFound),
			errors.Is(err, wallet.ErrAddressNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ledger.ErrBroadcastRejected):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			log.WithError(err).Error("transfer submission failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, transferResponse{
		TxHash: res.TxHash,
		Status: string(res.Status),
	})
}

type nodeRequest struct {
	Family string `json:"family"`
	URL    string `json:"url"`
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		family := application.ProtocolFamily(r.URL.Query().Get("family"))
		nodes, err := s.nodes.ListNodes(r.Context(), family)
		if err != nil {
			writeNodeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"nodes": nodes})

	case http.MethodPost, http.MethodDelete:
		req := nodeRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		family := application.ProtocolFamily(req.Family)
		var err error
		if r.Method == http.MethodPost {
			err = s.nodes.RegisterNode(r.Context(), family, req.URL)
		} else {
			err = s.nodes.RemoveNode(r.Context(), family, req.URL)
		}
		if err != nil {
			writeNodeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func writeNodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, application.ErrUnknownProtocolFamily),
		errors.Is(err, nodepool.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, nodepool.ErrAlreadyRegistered),
		errors.Is(err, nodepool.ErrNotRegistered),
		errors.Is(err, nodepool.ErrMaxReached),
		errors.Is(err, nodepool.ErrMinReached):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.WithError(err).Error("node management failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("unable to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
