package backendtest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/internal/offer"
	"github.com/NaveedAfraz/swapsphere-sync/internal/protocol"
)

func (s *Server) getOffer(c *gin.Context) {
	if _, ok := s.userFrom(c); !ok {
		return
	}
	s.mu.Lock()
	o, ok := s.offers[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "offer not found"})
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) createOffer(c *gin.Context) {
	userID, ok := s.userFrom(c)
	if !ok {
		return
	}
	var req domain.Offer
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.offers {
		if existing.DealRoomID == req.DealRoomID && !existing.Status.IsTerminal() {
			c.JSON(http.StatusConflict, gin.H{"error": "an offer is already active"})
			return
		}
	}
	created, _, err := offer.Submit(offer.SubmitParams{
		DealRoomID: req.DealRoomID,
		BuyerID:    req.BuyerID,
		SellerID:   req.SellerID,
		ListingID:  req.ListingID,
		ActorID:    userID,
		Price:      req.OfferedPrice,
		OfferType:  req.OfferType,
		ExpiresAt:  req.ExpiresAt,
	}, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Server assigns its own id regardless of what the client sent.
	created.ID = uuid.NewString()
	s.offers[created.ID] = created
	s.pushOfferLocked(created)
	c.JSON(http.StatusCreated, created)
}

func (s *Server) offerAction(c *gin.Context) {
	userID, ok := s.userFrom(c)
	if !ok {
		return
	}
	var req struct {
		Amount *int64 `json:"amount"`
	}
	c.ShouldBindJSON(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.offers[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "offer not found"})
		return
	}

	now := time.Now()
	var (
		next *domain.Offer
		err  error
	)
	switch c.Param("action") {
	case "accept":
		next, _, err = offer.Accept(current, userID, now)
	case "decline":
		next, _, err = offer.Decline(current, userID, now)
	case "counter":
		if req.Amount == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "counter requires an amount"})
			return
		}
		next, _, err = offer.Counter(current, userID, *req.Amount, now)
	case "cancel":
		next, _, err = offer.Withdraw(current, userID, now)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown offer action"})
		return
	}
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	s.offers[next.ID] = next
	s.pushOfferLocked(next)
	c.JSON(http.StatusOK, next)
}

func (s *Server) pushOfferLocked(o *domain.Offer) {
	env, err := protocol.NewEnvelope(protocol.EventOfferUpdated, o.DealRoomID, protocol.OfferUpdatedPayload{Offer: *o})
	if err == nil {
		s.broadcastLocked(env)
	}
}
