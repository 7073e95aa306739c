package realtime

import (
	"context"
	"time"

	"taxilink/internal/models"
	"taxilink/internal/services"
	"taxilink/pkg/logger"
	"taxilink/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const eventTimeout = 10 * time.Second

// Gateway interprets inbound transport events and routes them to the
// services. It is the only place that decides which group a connection may
// join; the hub itself never authorizes anything.
type Gateway struct {
	ws          *websocket.Handler
	chatService services.ChatService
	taxiService services.TaxiService
	logger      *logger.Logger
}

func NewGateway(
	ws *websocket.Handler,
	chatService services.ChatService,
	taxiService services.TaxiService,
	log *logger.Logger,
) *Gateway {
	gateway := &Gateway{
		ws:          ws,
		chatService: chatService,
		taxiService: taxiService,
		logger:      log,
	}
	ws.SetEventSink(gateway)

	return gateway
}

func (g *Gateway) HandleEvent(client *websocket.Client, event websocket.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	switch event.Type {
	case "initiateChat":
		g.initiateChat(ctx, client, event)

	case "joinChatRoom":
		g.joinChatRoom(ctx, client, event)

	case "leaveChatRoom":
		if sessionID, ok := objectIDField(event, "chat_session_id"); ok {
			g.ws.LeaveGroup(client, "chat_"+sessionID.Hex())
		}

	case "sendMessage":
		g.sendMessage(ctx, client, event)

	case "watchTaxi":
		g.watchTaxi(ctx, client, event)

	case "unwatchTaxi":
		if taxiID, ok := objectIDField(event, "taxi_id"); ok {
			g.ws.LeaveGroup(client, services.TaxiGroupKey(taxiID))
		}

	case "updateTaxiStatus":
		g.updateTaxi(ctx, client, event, func(ctx context.Context, taxiID primitive.ObjectID) error {
			status, _ := event.Data["status"].(string)
			_, err := g.taxiService.UpdateStatus(ctx, taxiID, client.UserID, models.TaxiStatus(status))
			return err
		})

	case "updateTaxiLoad":
		g.updateTaxi(ctx, client, event, func(ctx context.Context, taxiID primitive.ObjectID) error {
			load, ok := event.Data["load"].(float64)
			if !ok {
				return services.ErrCapacityExceeded
			}
			_, err := g.taxiService.UpdateLoad(ctx, taxiID, client.UserID, int(load))
			return err
		})

	case "updateTaxiStop":
		g.updateTaxi(ctx, client, event, func(ctx context.Context, taxiID primitive.ObjectID) error {
			stop, _ := event.Data["stop"].(string)
			_, err := g.taxiService.UpdateStop(ctx, taxiID, client.UserID, stop)
			return err
		})

	default:
		g.logger.WithUserID(client.UserID).WithField("event_type", event.Type).Debug("Ignoring unknown transport event")
	}
}

func (g *Gateway) initiateChat(ctx context.Context, client *websocket.Client, event websocket.Event) {
	rideRequestID, ok := objectIDField(event, "ride_request_id")
	if !ok {
		g.chatError(client, "ride_request_id is required")
		return
	}

	session, err := g.chatService.Initiate(ctx, rideRequestID, client.UserID)
	if err != nil {
		g.chatError(client, err.Error())
		return
	}

	g.ws.JoinGroup(client, session.GroupKey())
	g.ws.Unicast(client.UserID, "chatSessionReady", map[string]interface{}{
		"chat_session_id": session.ID.Hex(),
		"ride_request_id": rideRequestID.Hex(),
	})
}

func (g *Gateway) joinChatRoom(ctx context.Context, client *websocket.Client, event websocket.Event) {
	sessionID, ok := objectIDField(event, "chat_session_id")
	if !ok {
		g.chatError(client, "chat_session_id is required")
		return
	}

	session, err := g.chatService.Authorize(ctx, sessionID, client.UserID)
	if err != nil {
		g.chatError(client, err.Error())
		return
	}

	g.ws.JoinGroup(client, session.GroupKey())
}

func (g *Gateway) sendMessage(ctx context.Context, client *websocket.Client, event websocket.Event) {
	sessionID, ok := objectIDField(event, "chat_session_id")
	if !ok {
		g.chatError(client, "chat_session_id is required")
		return
	}
	content, _ := event.Data["content"].(string)

	if _, err := g.chatService.Send(ctx, sessionID, client.UserID, content); err != nil {
		g.chatError(client, err.Error())
	}
}

func (g *Gateway) watchTaxi(ctx context.Context, client *websocket.Client, event websocket.Event) {
	taxiID, ok := objectIDField(event, "taxi_id")
	if !ok {
		g.taxiError(client, "taxi_id is required")
		return
	}

	// Watching only requires the taxi to exist; status updates are not
	// confidential, unlike chat content.
	if _, err := g.taxiService.GetByID(ctx, taxiID); err != nil {
		g.taxiError(client, err.Error())
		return
	}

	g.ws.JoinGroup(client, services.TaxiGroupKey(taxiID))
}

func (g *Gateway) updateTaxi(ctx context.Context, client *websocket.Client, event websocket.Event, mutate func(context.Context, primitive.ObjectID) error) {
	taxiID, ok := objectIDField(event, "taxi_id")
	if !ok {
		g.taxiError(client, "taxi_id is required")
		return
	}

	if err := mutate(ctx, taxiID); err != nil {
		g.taxiError(client, err.Error())
	}
}

func (g *Gateway) chatError(client *websocket.Client, message string) {
	g.ws.Unicast(client.UserID, "chatError", map[string]interface{}{"message": message})
}

func (g *Gateway) taxiError(client *websocket.Client, message string) {
	g.ws.Unicast(client.UserID, "taxiError", map[string]interface{}{"message": message})
}

func objectIDField(event websocket.Event, key string) (primitive.ObjectID, bool) {
	raw, ok := event.Data[key].(string)
	if !ok {
		return primitive.NilObjectID, false
	}

	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, false
	}

	return id, true
}
