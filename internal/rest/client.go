// Package rest is the consumer side of the marketplace deal-room API. The
// server behind it is the ultimate authority on every entity; this client
// only shapes requests, bounds them with the configured timeout and maps
// failure statuses onto the engine's error taxonomy.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/apperrors"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/logger"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// RoomSnapshot is the authoritative per-room view returned by the API. The
// auction block is present only for auction rooms.
type RoomSnapshot struct {
	Room         domain.DealRoom      `json:"room"`
	Offer        *domain.Offer        `json:"offer,omitempty"`
	Auction      *domain.Auction      `json:"auction,omitempty"`
	Bids         []domain.Bid         `json:"bids,omitempty"`
	Participants []domain.Participant `json:"participants,omitempty"`
}

func (c *Client) ListDealRooms(ctx context.Context) ([]domain.DealRoom, error) {
	var out []domain.DealRoom
	if err := c.do(ctx, http.MethodGet, "/deal-rooms", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetDealRoom(ctx context.Context, roomID string) (*RoomSnapshot, error) {
	var out RoomSnapshot
	if err := c.do(ctx, http.MethodGet, "/deal-rooms/"+roomID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type updateStateRequest struct {
	State    domain.RoomState       `json:"state"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (c *Client) UpdateRoomState(ctx context.Context, roomID string, state domain.RoomState, metadata map[string]interface{}) (*domain.DealRoom, error) {
	var out domain.DealRoom
	body := updateStateRequest{State: state, Metadata: metadata}
	if err := c.do(ctx, http.MethodPatch, "/deal-rooms/"+roomID+"/state", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	var out []domain.Message
	if err := c.do(ctx, http.MethodGet, "/messages/"+roomID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type postMessageRequest struct {
	Body      string `json:"body"`
	ClientRef string `json:"client_ref,omitempty"`
}

// PostMessage is the REST fallback for send_message when the socket is down.
// ClientRef carries the optimistic temp id so the server can echo it back.
func (c *Client) PostMessage(ctx context.Context, roomID, body, clientRef string) (*domain.Message, error) {
	var out domain.Message
	req := postMessageRequest{Body: body, ClientRef: clientRef}
	if err := c.do(ctx, http.MethodPost, "/messages/"+roomID, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type markReadRequest struct {
	MessageIDs []string `json:"message_ids,omitempty"`
}

func (c *Client) MarkMessagesRead(ctx context.Context, roomID string, messageIDs []string) error {
	return c.do(ctx, http.MethodPatch, "/messages/"+roomID+"/read", markReadRequest{MessageIDs: messageIDs}, nil)
}

func (c *Client) GetOffer(ctx context.Context, offerID string) (*domain.Offer, error) {
	var out domain.Offer
	if err := c.do(ctx, http.MethodGet, "/offer/"+offerID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOffer(ctx context.Context, o domain.Offer) (*domain.Offer, error) {
	var out domain.Offer
	if err := c.do(ctx, http.MethodPost, "/offer", o, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Offer actions recognized by the API.
const (
	OfferActionAccept  = "accept"
	OfferActionDecline = "decline"
	OfferActionCounter = "counter"
	OfferActionCancel  = "cancel"
)

type offerActionRequest struct {
	Amount *int64 `json:"amount,omitempty"`
}

func (c *Client) OfferAction(ctx context.Context, offerID, action string, amount *int64) (*domain.Offer, error) {
	var out domain.Offer
	path := fmt.Sprintf("/offer/%s/%s", offerID, action)
	if err := c.do(ctx, http.MethodPost, path, offerActionRequest{Amount: amount}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type placeBidRequest struct {
	Amount int64 `json:"amount"`
}

func (c *Client) PlaceBid(ctx context.Context, auctionID string, amount int64) (*domain.Bid, error) {
	var out domain.Bid
	if err := c.do(ctx, http.MethodPost, "/auctions/"+auctionID+"/bids", placeBidRequest{Amount: amount}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type paymentConfirmRequest struct {
	OrderID string `json:"order_id"`
}

// ConfirmPayment reports the payment collaborator's capture result. The
// server answers with the room advanced to payment_completed.
func (c *Client) ConfirmPayment(ctx context.Context, roomID, orderID string) (*domain.DealRoom, error) {
	var out domain.DealRoom
	if err := c.do(ctx, http.MethodPost, "/deal-rooms/"+roomID+"/payment", paymentConfirmRequest{OrderID: orderID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Network(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.mapStatus(resp, method, path)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Network(method+" "+path+" decode", err)
	}
	return nil
}

func (c *Client) mapStatus(resp *http.Response, method, path string) error {
	var body errorResponse
	detail := resp.Status
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		detail = body.Error
	}
	op := method + " " + path

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.Auth(detail)
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return apperrors.Conflict(op, detail)
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		return apperrors.Validation("", detail)
	default:
		return apperrors.Network(op, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail))
	}
}
