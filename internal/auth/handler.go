package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/redmonkez12/otp-auth-api/internal/httputil"
	"github.com/redmonkez12/otp-auth-api/internal/logging"
	"github.com/redmonkez12/otp-auth-api/internal/user"
)

// Handler contains HTTP handlers for the registration and login endpoints
type Handler struct {
	service *Service
	// concealUnknownEmail answers unknown emails exactly like wrong passwords
	concealUnknownEmail bool
}

func NewHandler(service *Service, concealUnknownEmail bool) *Handler {
	return &Handler{
		service:             service,
		concealUnknownEmail: concealUnknownEmail,
	}
}

// SendOTPRequest represents the OTP request body
type SendOTPRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse wraps the public user fields with a confirmation message
type UserResponse struct {
	Message string      `json:"message"`
	User    user.Public `json:"user"`
}

// SendOTP handles OTP issuance
// @Summary      Request a registration OTP
// @Description  Validate the sign-up form and email a 6-digit code valid for 10 minutes. Any earlier code for the address stops working.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SendOTPRequest true "Sign-up form"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "User already exists"
// @Failure      502 {object} httputil.ErrorResponse "OTP could not be delivered"
// @Failure      503 {object} httputil.ErrorResponse "Store unavailable"
// @Router       /send-otp [post]
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid send otp request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	err := h.service.SendOTP(r.Context(), SendOTPInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			logger.Warn("send otp failed: validation error", "error", err.Error())
			respondValidationError(w, err)
			return
		}
		if errors.Is(err, ErrUserExists) {
			logger.Warn("send otp failed: user already exists")
			respondError(w, "user already exists", httputil.CodeUserAlreadyExists, http.StatusConflict)
			return
		}
		if errors.Is(err, ErrNotificationFailed) {
			logger.Error("send otp failed: delivery error", "error", err.Error())
			respondError(w, "failed to send otp email", httputil.CodeOTPDeliveryFailed, http.StatusBadGateway)
			return
		}
		if errors.Is(err, ErrStoreUnavailable) {
			logger.Error("send otp failed: store unavailable", "error", err.Error())
			respondError(w, "service temporarily unavailable", httputil.CodeServiceUnavailable, http.StatusServiceUnavailable)
			return
		}
		logger.Error("send otp failed: internal error", "error", err.Error())
		respondError(w, "server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("otp issued")

	httputil.RespondMessage(w, "OTP sent to email", http.StatusOK)
}

// Register handles OTP verification and account creation
// @Summary      Verify OTP and register
// @Description  Create the account when the submitted code matches the live code for the email. A used code is consumed even if the account already exists.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Sign-up form with OTP"
// @Success      201 {object} UserResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request, validation error or invalid OTP"
// @Failure      409 {object} httputil.ErrorResponse "User already exists"
// @Failure      503 {object} httputil.ErrorResponse "Store unavailable"
// @Router       /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	newUser, err := h.service.Register(r.Context(), RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Code:     req.OTP,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			logger.Warn("registration failed: validation error", "error", err.Error())
			respondValidationError(w, err)
			return
		}
		if errors.Is(err, ErrInvalidOTP) {
			logger.Warn("registration failed: invalid otp")
			respondError(w, "invalid or expired otp", httputil.CodeInvalidOTP, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrUserExists) {
			logger.Warn("registration failed: user already exists")
			respondError(w, "user already exists", httputil.CodeUserAlreadyExists, http.StatusConflict)
			return
		}
		if errors.Is(err, ErrStoreUnavailable) {
			logger.Error("registration failed: store unavailable", "error", err.Error())
			respondError(w, "service temporarily unavailable", httputil.CodeServiceUnavailable, http.StatusServiceUnavailable)
			return
		}
		logger.Error("registration failed: internal error", "error", err.Error())
		respondError(w, "server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	respondJSON(w, UserResponse{
		Message: "User registered successfully",
		User:    *newUser,
	}, http.StatusCreated)
}

// Login handles password login
// @Summary      User login
// @Description  Check the password for a registered email and return the public user fields. No session or token is issued.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} UserResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body or validation error"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      503 {object} httputil.ErrorResponse "Store unavailable"
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	loggedIn, err := h.service.Login(r.Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			logger.Warn("login failed: validation error", "error", err.Error())
			respondValidationError(w, err)
			return
		}
		if errors.Is(err, ErrUserNotFound) {
			logger.Warn("login failed: user not found")
			if h.concealUnknownEmail {
				respondError(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
				return
			}
			respondError(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			if h.concealUnknownEmail {
				respondError(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
				return
			}
			respondError(w, "invalid password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		if errors.Is(err, ErrStoreUnavailable) {
			logger.Error("login failed: store unavailable", "error", err.Error())
			respondError(w, "service temporarily unavailable", httputil.CodeServiceUnavailable, http.StatusServiceUnavailable)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		respondError(w, "server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user logged in successfully", "user_id", loggedIn.ID)

	respondJSON(w, UserResponse{
		Message: "Login successful",
		User:    *loggedIn,
	}, http.StatusOK)
}

// respondValidationError maps a validation error to its specific code
func respondValidationError(w http.ResponseWriter, err error) {
	code := httputil.CodeValidationFailed
	switch {
	case errors.Is(err, ErrNameRequired):
		code = httputil.CodeNameRequired
	case errors.Is(err, ErrEmailRequired):
		code = httputil.CodeEmailRequired
	case errors.Is(err, ErrPasswordRequired):
		code = httputil.CodePasswordRequired
	case errors.Is(err, ErrCodeRequired):
		code = httputil.CodeOTPRequired
	case errors.Is(err, ErrInvalidEmailFormat):
		code = httputil.CodeInvalidEmailFormat
	}
	respondError(w, err.Error(), code, http.StatusBadRequest)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}
