package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, "bad register request", fmt.Errorf("%w: malformed body", common.ErrValidation))
		return
	}
	u, err := s.users.Register(c.Request.Context(), req.Email, req.Name, req.Phone, req.Password)
	if err != nil {
		s.fail(c, "register failed", err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(u))
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, "bad login request", fmt.Errorf("%w: malformed body", common.ErrValidation))
		return
	}
	token, u, err := s.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, "login failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": token, "user": toUserResponse(u)})
}
