package model

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned on a successful login. Token is only set when
// the server has a JWT secret configured.
type LoginResponse struct {
	Message string `json:"message"`
	User    int64  `json:"user"`
	Token   string `json:"token,omitempty"`
}
