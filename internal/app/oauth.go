package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/semmidev/mdump/internal/adapter/storage"
	"github.com/semmidev/mdump/internal/infrastructure/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

const (
	authPath     = "/auth/google/drive"
	callbackPath = "/auth/google/callback"
)

// GoogleOAuthService obtains a Drive token through the browser and saves it
// where the gdrive upload target reads it.
type GoogleOAuthService struct {
	config     *oauth2.Config
	logger     *logger.Logger
	tokenFile  string
	state      string
	authServer *http.Server
	tokens     chan *oauth2.Token
}

func NewGoogleOAuthService(log *logger.Logger, clientSecretPath, tokenFile string) (*GoogleOAuthService, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if clientSecretPath == "" {
		return nil, errors.New("client secret path cannot be empty")
	}
	if tokenFile == "" {
		return nil, errors.New("token file cannot be empty")
	}

	b, err := os.ReadFile(clientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret: %w", err)
	}

	return &GoogleOAuthService{
		config:    cfg,
		logger:    log,
		tokenFile: tokenFile,
		state:     oauth2.GenerateVerifier(),
		tokens:    make(chan *oauth2.Token, 1),
	}, nil
}

func (s *GoogleOAuthService) GetConfig() *oauth2.Config {
	return s.config
}

func (s *GoogleOAuthService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+authPath, func(w http.ResponseWriter, r *http.Request) {
		authURL := s.config.AuthCodeURL(s.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	})

	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != s.state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}

		token, err := s.config.Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}

		if token.RefreshToken == "" {
			fmt.Fprintln(w, "⚠️ No refresh token returned. Revoke app access & re-authorize.")
			return
		}

		if err := storage.SaveToken(s.tokenFile, token); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		fmt.Fprintf(w, "✅ Token saved to %s, you can close this window.\n", s.tokenFile)
		select {
		case s.tokens <- token:
		default:
		}
	})

	return mux
}

// StartAuthServer listens on addr in the background. The redirect URL of
// the client secret must point at addr's callback path.
func (s *GoogleOAuthService) StartAuthServer(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.config.RedirectURL = "http://" + listener.Addr().String() + callbackPath
	s.authServer = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Infof("Open http://%s%s to authorize Google Drive", listener.Addr(), authPath)
		if err := s.authServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("OAuth server error: %v", err)
		}
	}()

	return nil
}

// Wait blocks until a token was saved or ctx is done.
func (s *GoogleOAuthService) Wait(ctx context.Context) error {
	select {
	case <-s.tokens:
		s.logger.Infof("✓ Google Drive token saved to %s", s.tokenFile)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *GoogleOAuthService) Shutdown(ctx context.Context) error {
	if s.authServer == nil {
		return nil
	}

	if err := s.authServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown OAuth server: %w", err)
	}
	s.logger.Infof("OAuth server stopped successfully")
	return nil
}

// AuthorizeDrive runs the browser flow once and stores the token.
func AuthorizeDrive(ctx context.Context, log *logger.Logger, clientSecretPath, tokenFile, addr string) error {
	svc, err := NewGoogleOAuthService(log, clientSecretPath, tokenFile)
	if err != nil {
		return err
	}

	if err := svc.StartAuthServer(ctx, addr); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			log.Warnf("%v", err)
		}
	}()

	return svc.Wait(ctx)
}
