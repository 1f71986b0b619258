package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenTTL is how long an issued room token stays valid.
const tokenTTL = 6 * time.Hour

type tokenRequest struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleToken issues an HS256 room access token. A missing room gets a
// fresh random name so each visitor lands in their own session.
func (s *Server) handleToken(c *fiber.Ctx) error {
	if s.secret == "" {
		return fiber.NewError(fiber.StatusServiceUnavailable, "token signing not configured")
	}

	var req tokenRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	if req.Room == "" {
		req.Room = "room-" + uuid.NewString()[:8]
	}
	if req.Identity == "" {
		req.Identity = "user"
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"room":     req.Room,
		"identity": req.Identity,
		"iat":      now.Unix(),
		"exp":      now.Add(tokenTTL).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	if err != nil {
		s.logger.Error("token signing failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "token signing failed")
	}

	return c.JSON(tokenResponse{Token: token, Room: req.Room, Identity: req.Identity})
}

// handleResumeUpload stores a multipart resume file for the session
// named in the path.
func (s *Server) handleResumeUpload(c *fiber.Ctx) error {
	if s.resume == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "resume uploads not configured")
	}

	roomName := c.Params("room")
	if roomName == "" {
		return fiber.NewError(fiber.StatusBadRequest, "room is required")
	}

	header, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}

	f, err := header.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not read file")
	}
	defer f.Close()

	path, err := s.resume.SaveUpload(roomName, header.Filename, f)
	if err != nil {
		s.logger.Warn("resume upload rejected", "room", roomName, "file", header.Filename, "error", err)
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	s.logger.Info("resume uploaded", "room", roomName, "path", path)
	return c.JSON(fiber.Map{"status": "stored", "filename": header.Filename})
}
