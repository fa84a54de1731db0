package handler

// registerRequest fields are validated in declaration order; the first
// failure is the one reported.
type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=24"`
	Email    string `json:"email"    validate:"required,email"`
	Type     string `json:"type"     validate:"required,oneof=user admin"`
	Password string `json:"password" validate:"required,password"`
}

// loginRequest is deliberately not validated: any malformed credential pair
// simply fails to authenticate.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}
