// Package admit bridges an upgraded HTTP request into a registered
// connection: it resolves the session, user, note, and permission, then
// hands the new connection to its note's hub.
package admit

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gorilla/websocket"

	"github.com/noteboard/realtime/internal/eventbus"
	"github.com/noteboard/realtime/internal/logging"
	"github.com/noteboard/realtime/pkg/connection"
	"github.com/noteboard/realtime/pkg/domain"
	apperrors "github.com/noteboard/realtime/pkg/errors"
	"github.com/noteboard/realtime/pkg/registry"
	"github.com/noteboard/realtime/pkg/session"
	"github.com/noteboard/realtime/pkg/transport"
)

var notePathPattern = regexp.MustCompile(`^/realtime/\?noteId=(.+)$`)

// ExtractNoteId pulls the note id out of a request's path+query, matching
// against the fixed /realtime/?noteId={id} pattern (spec §6, property B1).
func ExtractNoteId(requestURI string) (string, error) {
	m := notePathPattern.FindStringSubmatch(requestURI)
	if m == nil {
		return "", domain.ErrMalformedPath
	}
	return m[1], nil
}

// Admitter is the single entry point called per incoming upgrade request.
type Admitter struct {
	Sessions    domain.SessionService
	Users       domain.UsersService
	Notes       domain.NotesService
	Storage     domain.NotesStorage
	Permissions domain.PermissionsService
	Registry    *registry.Registry

	CookieName        string
	SessionSecret     string
	KeepAliveInterval time.Duration
	TransportOptions  transport.Options

	Logger       *logging.Logger
	Events       eventbus.Bus
	ErrorHandler apperrors.Handler

	upgrader websocket.Upgrader
}

// New builds an Admitter ready to be mounted as an http.Handler.
func New(
	sessions domain.SessionService,
	users domain.UsersService,
	notes domain.NotesService,
	storage domain.NotesStorage,
	permissions domain.PermissionsService,
	reg *registry.Registry,
	cookieName, sessionSecret string,
	keepAliveInterval time.Duration,
	logger *logging.Logger,
	events eventbus.Bus,
) *Admitter {
	return &Admitter{
		Sessions:          sessions,
		Users:             users,
		Notes:             notes,
		Storage:           storage,
		Permissions:       permissions,
		Registry:          reg,
		CookieName:        cookieName,
		SessionSecret:     sessionSecret,
		KeepAliveInterval: keepAliveInterval,
		TransportOptions:  transport.DefaultOptions(),
		Logger:            logger,
		Events:            events,
		ErrorHandler:      apperrors.NewDefaultHandler(logger.Logger, events),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler for the /realtime/ upgrade route.
func (a *Admitter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	noteIdOrAlias, err := ExtractNoteId(r.URL.RequestURI())
	if err != nil {
		a.deny(w, r, "MALFORMED_PATH", "malformed realtime path", err)
		return
	}

	sessionId, err := session.ExtractSessionId(r, a.CookieName, a.SessionSecret)
	if err != nil {
		cause := domain.ErrUnknownSession
		if errors.Is(err, session.ErrMissingCookie) {
			cause = domain.ErrMissingCookie
		}
		a.deny(w, r, "MISSING_OR_INVALID_COOKIE", "missing or invalid session cookie", cause)
		return
	}

	username, err := a.Sessions.UsernameFromSessionId(sessionId)
	if err != nil {
		a.deny(w, r, "UNKNOWN_SESSION", "session does not resolve to a user", err)
		return
	}

	user, err := a.Users.ByUsername(username)
	if err != nil {
		a.deny(w, r, "UNKNOWN_USER", "username does not resolve to a user", err)
		return
	}

	note, err := a.Notes.ByIdOrAlias(noteIdOrAlias)
	if err != nil {
		a.deny(w, r, "UNKNOWN_NOTE", "note id or alias does not resolve", err)
		return
	}

	mayRead, err := a.Permissions.MayRead(user, note)
	if err != nil {
		a.deny(w, r, "PERMISSION_CHECK_FAILED", "permission check failed", err)
		return
	}
	if !mayRead {
		a.deny(w, r, "ACCESS_DENIED", "user may not read this note", domain.ErrPermissionDenied)
		return
	}

	h, err := a.Registry.GetOrCreate(note.ID, func() (string, error) {
		revision, err := a.Storage.GetLatestRevision(note)
		if err != nil {
			return "", err
		}
		return revision.Content, nil
	})
	if err != nil {
		a.deny(w, r, "HUB_CREATION_FAILED", "failed to obtain note hub", err)
		return
	}

	wsConn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn("websocket upgrade failed", "error", err)
		// h was just created (or reused) by GetOrCreate above but never
		// saw a connection; without this it would sit in the registry
		// forever since Destroy only ever fires from Remove observing an
		// emptied connection set.
		a.Registry.Remove(note.ID)
		return
	}

	t := transport.NewWebsocket(wsConn, a.TransportOptions)
	if t.State() != transport.StateOpen {
		t.Close()
		a.Registry.Remove(note.ID)
		return
	}

	conn := connection.New(t, user, h, a.KeepAliveInterval, a.Logger, a.Events)
	if err := conn.Start(); err != nil {
		// Connect failed (hub is closing): the hub never saw this
		// connection, so there is nothing to remove — just drop the
		// transport. If it had instead failed after Connect succeeded,
		// Start already calls hub.Remove before returning, so idle
		// cleanup is never left to chance either way.
		a.Logger.Error("failed to start connection", "error", err)
		t.Close()
	}
}

func (a *Admitter) deny(w http.ResponseWriter, r *http.Request, code, message string, cause error) {
	var e *apperrors.Error
	if cause != nil {
		e = apperrors.Wrap(cause, apperrors.ErrorTypeAdmissionDenied, code, message)
	} else {
		e = apperrors.New(apperrors.ErrorTypeAdmissionDenied, code, message)
	}
	a.ErrorHandler.HandleWithLogger(r.Context(), e, a.Logger.Logger)
	http.Error(w, "forbidden", http.StatusForbidden)
}
