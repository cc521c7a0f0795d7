package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-selector/pkg/core/model"
)

// DirectoryLoader provides the current directory snapshot
type DirectoryLoader interface {
	Load(ctx context.Context) (*model.Directory, error)
}

// AuthResult is the authenticated user together with the snapshot it was resolved from,
// so a single directory fetch serves both the auth check and team lookups
type AuthResult struct {
	User      *model.UserRecord
	Directory *model.Directory
}

// Authenticate resolves an Authorization header of the form "<scheme> <token>".
// A token of the form "<user>:<password>" is checked against the Reg ID and PWD columns;
// any other token must match a Key exactly.
func Authenticate(ctx context.Context, loader DirectoryLoader, logger *zap.Logger, header string) (*AuthResult, error) {
	token := bearerToken(header)
	if token == "" {
		return nil, model.ErrMissingCredential
	}

	dir, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}

	if username, password, legacy := strings.Cut(token, ":"); legacy {
		user, err := checkPassword(dir, username, password)
		if err != nil {
			logger.Debug("Password authentication failed", zap.String("username", username), zap.Error(err))
			return nil, err
		}
		return &AuthResult{User: user, Directory: dir}, nil
	}

	user, ok := dir.ByKey[token]
	if !ok {
		logger.Debug("Unknown credential")
		return nil, model.ErrUnknownCredential
	}

	return &AuthResult{User: user, Directory: dir}, nil
}

// Login exchanges a username and password for the user's bearer key
func Login(ctx context.Context, loader DirectoryLoader, logger *zap.Logger, username, password string) (string, error) {
	dir, err := loader.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load directory: %w", err)
	}

	user, err := checkPassword(dir, username, password)
	if err != nil {
		logger.Debug("Login failed", zap.String("username", username), zap.Error(err))
		return "", err
	}

	if user.Key == "" {
		logger.Warn("User has no key", zap.String("username", username))
		return "", model.ErrUnknownCredential
	}

	logger.Info("Session created", zap.String("username", username))
	return user.Key, nil
}

func checkPassword(dir *model.Directory, username, password string) (*model.UserRecord, error) {
	if username == "" || password == "" {
		return nil, model.ErrMissingCredential
	}

	user, ok := dir.ByID[username]
	if !ok {
		return nil, model.ErrUnknownUser
	}
	if user.Password == "" || user.Password != password {
		return nil, model.ErrWrongPassword
	}

	return user, nil
}

// bearerToken returns the second whitespace-separated field of the header
func bearerToken(header string) string {
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
