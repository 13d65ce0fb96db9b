package echoapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/feed"
	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/user"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames
	maxMessageSize = 512
)

type feedApi struct {
	svc      *hostel.Service
	broker   *feed.Broker
	logger   core.Logger
	upgrader websocket.Upgrader
}

func registerFeedAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *hostel.Service, broker *feed.Broker, logger core.Logger) {
	api := feedApi{
		svc:    svc,
		broker: broker,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the token is the credential, not the origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	g.GET("/feeds/:collection", api.subscribe, authed...)
}

// subscribe streams the full content of a collection: once on connection, then after every change.
// The stream ends when the client goes away or when the session is closed.
func (api *feedApi) subscribe(ctx echo.Context) error {
	collection := ctx.Param("collection")
	if !isCollection(collection) {
		return errHttpNotFound
	}
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}

	if _, ok := api.broker.Last(collection); !ok {
		api.svc.Publish(ctx.Request().Context(), collection)
	}

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already replied to the client
		api.logger.Debug("websocket upgrade failed", err)
		return nil
	}

	client := newFeedClient(conn, api.logger)
	identity := sess.Identity
	cancel, err := sess.Subscribe(api.broker, collection, func(snap feed.Snapshot) {
		client.push(scopeSnapshot(identity, snap))
	})
	if err != nil {
		_ = conn.Close()
		return nil
	}
	defer cancel()

	go client.readPump()
	client.writePump(sess.Done())
	return nil
}

func isCollection(name string) bool {
	for _, c := range hostel.Collections {
		if c == name {
			return true
		}
	}
	return false
}

// scopeSnapshot keeps only the records a student owns in the owned collections.
func scopeSnapshot(id user.Identity, snap feed.Snapshot) feed.Snapshot {
	if id.IsAdmin() {
		return snap
	}
	switch items := snap.Items.(type) {
	case []hostel.Student:
		own := make([]hostel.Student, 0, 1)
		for _, s := range items {
			if id.Authorize(user.ActionRead, s.ID) == nil {
				own = append(own, s)
			}
		}
		snap.Items = own
	case []hostel.Grievance:
		own := make([]hostel.Grievance, 0)
		for _, g := range items {
			if id.Authorize(user.ActionRead, g.StudentID) == nil {
				own = append(own, g)
			}
		}
		snap.Items = own
	case []hostel.LeaveRequest:
		own := make([]hostel.LeaveRequest, 0)
		for _, l := range items {
			if id.Authorize(user.ActionRead, l.StudentID) == nil {
				own = append(own, l)
			}
		}
		snap.Items = own
	}
	return snap
}

// feedClient is a middleman between the broker and the websocket connection.
type feedClient struct {
	conn   *websocket.Conn
	logger core.Logger

	// holds at most the latest undelivered snapshot
	send   chan feed.Snapshot
	closed chan struct{}
}

func newFeedClient(conn *websocket.Conn, logger core.Logger) *feedClient {
	return &feedClient{
		conn:   conn,
		logger: logger,
		send:   make(chan feed.Snapshot, 1),
		closed: make(chan struct{}),
	}
}

// push never blocks: an undelivered older snapshot is replaced by the new one.
func (c *feedClient) push(snap feed.Snapshot) {
	for {
		select {
		case c.send <- snap:
			return
		default:
			select {
			case <-c.send:
			default:
			}
		}
	}
}

// readPump drains control frames until the peer goes away.
func (c *feedClient) readPump() {
	defer close(c.closed)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("unexpected websocket close", err)
			}
			return
		}
	}
}

// writePump writes snapshots to the connection until the peer goes away or done is closed.
func (c *feedClient) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case snap := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
				time.Now().Add(writeWait),
			)
			return
		case <-c.closed:
			return
		}
	}
}
