package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jakechorley/shift-selector/internal/config"
)

const (
	AuthPort       = 3001
	authTimeout    = 5 * time.Minute
	callbackPath   = "/oauth/callback"
	tokenDirName   = ".shift-selector/tokens"
	tokenFilePerms = 0600
	tokenDirPerms  = 0700
)

// ScopeSheets grants read/write access to spreadsheets
const ScopeSheets = "https://www.googleapis.com/auth/spreadsheets"

var (
	tokenCache   *oauth2.Token
	tokenCacheMu sync.Mutex
)

// NewHTTPClient returns an HTTP client authorised for the Sheets API.
// A service account key is preferred; otherwise an installed-app OAuth client is used
// with a token persisted per environment.
func NewHTTPClient(ctx context.Context, creds config.CredentialsConfig, env string, logger *zap.Logger) (*http.Client, error) {
	if creds.ServiceAccountFile != "" {
		return serviceAccountClient(ctx, creds.ServiceAccountFile)
	}

	oauthCfg, err := config.LoadOAuthClientFromPath(creds.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load oauth client config: %w", err)
	}

	oauthConfig, err := GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	token, err := GetTokenWithFlow(ctx, oauthConfig, env, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth token: %w", err)
	}

	return oauthConfig.Client(ctx, token), nil
}

func serviceAccountClient(ctx context.Context, path string) (*http.Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, ScopeSheets)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}

	return oauth2.NewClient(ctx, creds.TokenSource), nil
}

// GetOAuthConfig creates an OAuth2 config from the OAuth client configuration
func GetOAuthConfig(oauthCfg *config.OAuthClientConfig) (*oauth2.Config, error) {
	oauthConfigJSON, err := json.Marshal(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal oauth config: %w", err)
	}

	googleConfig, err := google.ConfigFromJSON(oauthConfigJSON, ScopeSheets)
	if err != nil {
		return nil, fmt.Errorf("failed to create google config: %w", err)
	}

	// Redirect to our local callback server
	googleConfig.RedirectURL = fmt.Sprintf("http://localhost:%d%s", AuthPort, callbackPath)

	return googleConfig, nil
}

// GetTokenWithFlow returns a usable token, refreshing a persisted one or running the
// interactive OAuth flow when none is available. Only one flow runs at a time.
func GetTokenWithFlow(ctx context.Context, oauthConfig *oauth2.Config, env string, logger *zap.Logger) (*oauth2.Token, error) {
	tokenCacheMu.Lock()
	defer tokenCacheMu.Unlock()

	if tokenCache != nil && tokenCache.Valid() {
		return tokenCache, nil
	}

	fileToken, err := LoadTokenFromFile(env)
	if err != nil {
		logger.Warn("Failed to load token from file", zap.Error(err))
	}

	if fileToken != nil {
		if fileToken.Valid() {
			tokenCache = fileToken
			return fileToken, nil
		}
		if fileToken.RefreshToken != "" {
			refreshed, err := oauthConfig.TokenSource(ctx, fileToken).Token()
			if err == nil {
				logger.Info("OAuth token refreshed")
				if err := SaveTokenToFile(env, refreshed); err != nil {
					logger.Warn("Failed to save refreshed token", zap.Error(err))
				}
				tokenCache = refreshed
				return refreshed, nil
			}
			logger.Warn("Failed to refresh token, starting OAuth flow", zap.Error(err))
		}
	}

	authURL := oauthConfig.AuthCodeURL("state", oauth2.AccessTypeOffline)
	logger.Info("Visit this URL to authorize the application", zap.String("url", authURL))

	code, err := listenForAuthCallback(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization code: %w", err)
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if err := SaveTokenToFile(env, token); err != nil {
		logger.Warn("Failed to save token to file", zap.Error(err))
	}

	tokenCache = token
	return token, nil
}

// listenForAuthCallback starts a local HTTP server and waits for the OAuth callback
func listenForAuthCallback(ctx context.Context) (string, error) {
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- errors.New("no authorization code received")
			http.Error(w, "Authorization failed", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "Authorization successful, you can close this window.")
		codeChan <- code
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", AuthPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	var code string
	var authErr error

	select {
	case code = <-codeChan:
	case authErr = <-errChan:
	case <-timeoutCtx.Done():
		authErr = fmt.Errorf("authorization timeout after %v", authTimeout)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	if authErr != nil {
		return "", authErr
	}
	return code, nil
}

// ClearToken clears the token from memory cache
func ClearToken() {
	tokenCacheMu.Lock()
	defer tokenCacheMu.Unlock()
	tokenCache = nil
}

func tokenDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, tokenDirName), nil
}

func tokenFilePath(env string) (string, error) {
	dir, err := tokenDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("token-%s.json", env)), nil
}

// LoadTokenFromFile loads the persisted token for env. A missing file is not an error.
func LoadTokenFromFile(env string) (*oauth2.Token, error) {
	tokenPath, err := tokenFilePath(env)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	return &token, nil
}

// SaveTokenToFile persists the token for env with owner-only permissions
func SaveTokenToFile(env string, token *oauth2.Token) error {
	dir, err := tokenDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, tokenDirPerms); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tokenPath, err := tokenFilePath(env)
	if err != nil {
		return err
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.WriteFile(tokenPath, data, tokenFilePerms); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// DeleteTokenFile deletes the token file for env
func DeleteTokenFile(env string) error {
	tokenPath, err := tokenFilePath(env)
	if err != nil {
		return err
	}

	if err := os.Remove(tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}

	return nil
}
