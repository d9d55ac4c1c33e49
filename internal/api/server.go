package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"lectern/internal/live"
	"lectern/internal/presence"
	"lectern/internal/realtime"
	"lectern/internal/rooms"
	"lectern/pkg/interfaces"
)

// Server is the HTTP route layer: thin handlers that validate input, call
// the identity & membership store, serialize JSON, and on specific writes
// trigger a best-effort broadcast through the room router.
type Server struct {
	store    interfaces.Store
	live     *live.Registry
	presence *presence.Registry
	rooms    *rooms.Router
	validate *validator.Validate
	app      *echo.Echo
}

// NewServer wires the route layer.
func NewServer(store interfaces.Store, liveReg *live.Registry, presenceReg *presence.Registry, roomRouter *rooms.Router, rt *realtime.Handler) *Server {
	s := &Server{
		store:    store,
		live:     liveReg,
		presence: presenceReg,
		rooms:    roomRouter,
		validate: validator.New(),
		app:      echo.New(),
	}
	s.setup(rt)
	return s
}

func (s *Server) setup(rt *realtime.Handler) {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.Recover())
	s.app.Use(middleware.CORS())

	s.app.GET("/health", s.health)
	s.app.GET("/ws", rt.HandleWebSocket)

	api := s.app.Group("/api")

	api.POST("/lectures", s.createLecture)
	api.GET("/lectures", s.listLectures)
	api.GET("/lectures/:id", s.getLecture)
	api.POST("/lectures/:id/materials", s.createMaterial)
	api.GET("/lectures/:id/materials", s.listMaterials)
	api.POST("/lectures/:id/enroll", s.enrollStudent)
	api.POST("/lectures/:id/live", s.startLiveSession)

	api.POST("/cohorts", s.createCohort)
	api.POST("/cohorts/join", s.joinCohort)

	api.GET("/live/:id", s.getLiveSession)
	api.POST("/live/:id/end", s.endLiveSession)
	api.POST("/live/:id/recordings", s.addRecording)
}

// Echo returns the underlying echo instance for the HTTP server and tests.
func (s *Server) Echo() *echo.Echo {
	return s.app
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

// health is the read-only monitoring surface: a direct projection of the
// live session and presence registries.
func (s *Server) health(c echo.Context) error {
	if err := s.store.HealthCheck(c.Request().Context()); err != nil {
		return s.fail(c, http.StatusServiceUnavailable, "store unavailable")
	}
	return s.ok(c, http.StatusOK, "ok", echo.Map{
		"active_sessions": s.live.ActiveCount(),
		"online_users":    s.presence.Count(),
	})
}
