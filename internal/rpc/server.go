// Package rpc exposes the symbol database to local clients over a
// unix-socket JSON-RPC endpoint: name search, per-file listings, and
// database statistics.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/codequarry/symdb/internal/logger"
	"github.com/codequarry/symdb/internal/tokens"
)

type Server struct {
	tree *tokens.Tree
	path string
	log  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func NewServer(socketPath string, tree *tokens.Tree) *Server {
	return &Server{
		tree: tree,
		path: socketPath,
		log:  logger.ForComponent("rpc"),
	}
}

// Start binds the unix socket, replacing any stale one left by a
// previous run.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.path, 0700); err != nil {
		listener.Close()
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info("rpc server listening", "socket", s.path)
	return nil
}

// Serve accepts connections until the context is cancelled or Close is
// called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return fmt.Errorf("server not started")
	}

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || ctx.Err() != nil {
				return nil
			}
			return err
		}

		stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{})
		jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.listener == nil {
		return nil
	}
	s.closed = true
	err := s.listener.Close()
	os.Remove(s.path)
	return err
}

func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	switch req.Method {
	case "symdb/find":
		var params FindParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.find(params), nil

	case "symdb/file":
		var params FileParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.fileSymbols(params), nil

	case "symdb/stats":
		return s.stats(), nil

	default:
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method %q not found", req.Method),
		}
	}
}

func unmarshalParams(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

type FindParams struct {
	Query         string `json:"query"`
	Prefix        bool   `json:"prefix"`
	CaseSensitive bool   `json:"case_sensitive"`
	Kinds         uint16 `json:"kinds,omitempty"`
}

type SymbolInfo struct {
	Index     int    `json:"index"`
	Ticket    int    `json:"ticket"`
	Name      string `json:"name"`
	Display   string `json:"display"`
	Kind      string `json:"kind"`
	Scope     string `json:"scope"`
	Namespace string `json:"namespace,omitempty"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type FindResult struct {
	Symbols []SymbolInfo `json:"symbols"`
}

type FileParams struct {
	Path  string `json:"path"`
	Kinds uint16 `json:"kinds,omitempty"`
}

type FileResult struct {
	Path    string       `json:"path"`
	Status  string       `json:"status"`
	Flagged bool         `json:"flagged_for_reparse"`
	Symbols []SymbolInfo `json:"symbols"`
}

type StatsResult struct {
	Slots    int  `json:"slots"`
	Live     int  `json:"live"`
	Files    int  `json:"files"`
	Tickets  int  `json:"tickets"`
	Modified bool `json:"modified"`
}

func (s *Server) find(params FindParams) FindResult {
	mask := tokens.Kind(params.Kinds)
	if mask == 0 {
		mask = tokens.KindUndefined
	}

	s.tree.Lock()
	defer s.tree.Unlock()

	idxs := s.tree.FindMatches(params.Query, params.CaseSensitive, params.Prefix, mask)
	return FindResult{Symbols: s.describeAll(idxs)}
}

func (s *Server) fileSymbols(params FileParams) FileResult {
	mask := tokens.Kind(params.Kinds)
	if mask == 0 {
		mask = tokens.KindUndefined
	}

	s.tree.Lock()
	defer s.tree.Unlock()

	return FileResult{
		Path:    params.Path,
		Status:  s.tree.FileStatus(params.Path).String(),
		Flagged: s.tree.IsFileFlaggedForReparse(params.Path),
		Symbols: s.describeAll(s.tree.FindTokensInFile(params.Path, mask)),
	}
}

func (s *Server) stats() StatsResult {
	s.tree.Lock()
	defer s.tree.Unlock()

	return StatsResult{
		Slots:    s.tree.Size(),
		Live:     s.tree.RealSize(),
		Files:    s.tree.FileCount(),
		Tickets:  s.tree.TicketCount(),
		Modified: s.tree.Modified(),
	}
}

// describeAll flattens tokens into wire records; the caller holds the
// tree lock.
func (s *Server) describeAll(idxs []int) []SymbolInfo {
	out := make([]SymbolInfo, 0, len(idxs))
	for _, idx := range idxs {
		tok := s.tree.At(idx)
		if tok == nil {
			continue
		}
		out = append(out, SymbolInfo{
			Index:     idx,
			Ticket:    tok.Ticket(),
			Name:      tok.Name,
			Display:   tok.DisplayName(),
			Kind:      tok.Kind.String(),
			Scope:     tok.Scope.String(),
			Namespace: tok.GetNamespace(),
			File:      tok.GetFilename(),
			Line:      tok.Line,
		})
	}
	return out
}
