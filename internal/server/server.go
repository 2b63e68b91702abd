package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"advocase/internal/cases"
	"advocase/internal/invite"
	"advocase/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

// DocumentStore is the slice of the document repository the API serves.
type DocumentStore interface {
	Document(ctx context.Context, caseID, documentID string) (*types.CaseDocument, error)
	DocumentsByCase(ctx context.Context, caseID string) ([]*types.CaseDocument, error)
	Create(ctx context.Context, doc *types.CaseDocument) error
	Delete(ctx context.Context, caseID, documentID string) error
}

// GrantDirectory serves the advocate aggregation views, built strictly from
// the access grant rows.
type GrantDirectory interface {
	ClientsForAdvocate(ctx context.Context, advocateID string) ([]*types.ClientSummary, error)
}

type ObjectStorage interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// ClientStateStore persists per-user client-local state between sessions.
type ClientStateStore interface {
	Load(ctx context.Context, userID string) (*types.ClientState, error)
	Save(ctx context.Context, userID string, state *types.ClientState) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Service struct {
	logger      *logrus.Logger
	config      *types.Config
	cases       *cases.Service
	invites     *invite.Service
	documents   DocumentStore
	grants      GrantDirectory
	objects     ObjectStorage
	clientState ClientStateStore

	cookie *securecookie.SecureCookie

	jwksCache *jwk.Cache
	jwksURL   string

	// authenticate resolves request credentials to (userID, email, role).
	// Defaults to bearer token verification.
	authenticate func(r *http.Request) (string, string, string, error)

	pingers []Pinger

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	casesSvc *cases.Service,
	invites *invite.Service,
	documents DocumentStore,
	grants GrantDirectory,
	objects ObjectStorage,
	clientState ClientStateStore,
	jwkCache *jwk.Cache,
	jwksURL string,
	pingers ...Pinger,
) (*Service, error) {
	mux := flow.New()

	hashKey, _ := base64.StdEncoding.DecodeString(config.CookieHashKey)
	blockKey, _ := base64.StdEncoding.DecodeString(config.CookieBlockKey)

	s := &Service{
		logger:      logger,
		config:      config,
		cases:       casesSvc,
		invites:     invites,
		documents:   documents,
		grants:      grants,
		objects:     objects,
		clientState: clientState,
		cookie:      securecookie.New(hashKey, blockKey),
		jwksCache:   jwkCache,
		jwksURL:     jwksURL,
		pingers:     pingers,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.authenticate = s.bearerUser
	s.buildRouter(mux)

	return s, nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.StripTrailingSlash)
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)

	// Case creation also serves the anonymous summary-export surface, so it
	// takes the tracked-anonymous middleware instead of hard auth.
	r.Group(func(r *flow.Mux) {
		r.Use(s.AllowAnonymousOwner)

		r.HandleFunc("/cases", s.handleCreateCase, http.MethodPost)
	})

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		r.HandleFunc("/cases", s.handleListCases, http.MethodGet)
		r.HandleFunc("/cases/:caseID", s.handleGetCase, http.MethodGet)
		r.HandleFunc("/cases/:caseID", s.handlePatchCase, http.MethodPatch)
		r.HandleFunc("/cases/:caseID", s.handleDeleteCase, http.MethodDelete)

		r.HandleFunc("/cases/:caseID/documents", s.handleUploadDocument, http.MethodPost)
		r.HandleFunc("/cases/:caseID/documents/:documentID", s.handleDeleteDocument, http.MethodDelete)

		r.HandleFunc("/case-access/invite", s.handlePostInvite, http.MethodPost)

		r.HandleFunc("/advocate/clients", s.handleAdvocateClients, http.MethodGet)
		r.HandleFunc("/advocate/clients/:clientID/cases", s.handleAdvocateClientCases, http.MethodGet)

		r.HandleFunc("/client-state", s.handleGetClientState, http.MethodGet)
		r.HandleFunc("/client-state", s.handlePutClientState, http.MethodPut)
	})
}

func (s *Service) userIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(contextKeyUserID).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user id not found in context")
	}
	return userID, nil
}
