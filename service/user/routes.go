package user

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/KAsare1/slotbook-server/cmd/models"
	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/KAsare1/slotbook-server/repository"
	"github.com/KAsare1/slotbook-server/service/availability"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64,slug"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	TimeZone string `json:"timezone" validate:"omitempty,timezone"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Host        models.Host `json:"host"`
}

type Handler struct {
	store repository.Store
	auth  *utils.Auth
	log   *slog.Logger
}

func NewHandler(store repository.Store, auth *utils.Auth, log *slog.Logger) *Handler {
	return &Handler{store: store, auth: auth, log: log}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/register", h.handleRegister).Methods("POST")
	router.HandleFunc("/auth/login", h.handleLogin).Methods("POST")
}

// RegisterHostRoutes expects a router that already authenticates the host.
func (h *Handler) RegisterHostRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.GetMe).Methods("GET")
}

// Register creates the host together with its default working-hours schedule.
func (h *Handler) Register(ctx context.Context, req RegisterRequest) (models.Host, error) {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.TimeZone == "" {
		req.TimeZone = "UTC"
	}
	if err := utils.ValidateStruct(req); err != nil {
		return models.Host{}, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.Host{}, apperror.Internal(err, "error hashing password")
	}
	host := models.Host{
		Username:     req.Username,
		FullName:     strings.TrimSpace(req.FullName),
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		TimeZone:     req.TimeZone,
	}

	err = h.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Hosts.GetByEmail(ctx, host.Email); err == nil {
			return apperror.Conflict("email is already in use").WithField("email", "already in use")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if _, err := repos.Hosts.GetByUsername(ctx, host.Username); err == nil {
			return apperror.Conflict("username is already taken").WithField("username", "already taken")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := repos.Hosts.Create(ctx, &host); err != nil {
			return err
		}
		schedule := availability.DefaultSchedule(host.ID, host.TimeZone)
		return repos.Schedules.Create(ctx, &schedule)
	})
	if err != nil {
		var appErr *apperror.Error
		switch {
		case errors.As(err, &appErr):
			return models.Host{}, err
		case errors.Is(err, repository.ErrDuplicate):
			return models.Host{}, apperror.Conflict("email or username is already in use")
		default:
			return models.Host{}, apperror.Internal(err, "failed to register")
		}
	}
	h.log.Info("host registered", "host_id", host.ID, "username", host.Username)
	return host, nil
}

func (h *Handler) Login(ctx context.Context, req LoginRequest) (TokenResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.ValidateStruct(req); err != nil {
		return TokenResponse{}, err
	}
	host, err := h.store.Repositories().Hosts.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenResponse{}, apperror.Unauthorized("invalid credentials")
	}
	if err != nil {
		return TokenResponse{}, apperror.Internal(err, "failed to load host")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(host.PasswordHash), []byte(req.Password)); err != nil {
		return TokenResponse{}, apperror.Unauthorized("invalid credentials")
	}
	token, expires, err := h.auth.GenerateToken(host.ID)
	if err != nil {
		return TokenResponse{}, apperror.Internal(err, "error generating access token")
	}
	return TokenResponse{AccessToken: token, ExpiresAt: expires, Host: host}, nil
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	host, err := h.Register(r.Context(), req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	token, expires, err := h.auth.GenerateToken(host.ID)
	if err != nil {
		utils.WriteError(w, r, apperror.Internal(err, "error generating access token"))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, TokenResponse{AccessToken: token, ExpiresAt: expires, Host: host})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	resp, err := h.Login(r.Context(), req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	host, err := h.store.Repositories().Hosts.GetByID(r.Context(), hostID)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, r, apperror.NotFound("host not found"))
		return
	}
	if err != nil {
		utils.WriteError(w, r, apperror.Internal(err, "failed to load host"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, host)
}
