package backendtest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NaveedAfraz/swapsphere-sync/internal/auction"
	"github.com/NaveedAfraz/swapsphere-sync/internal/domain"
	"github.com/NaveedAfraz/swapsphere-sync/internal/protocol"
)

func (s *Server) placeBid(c *gin.Context) {
	userID, ok := s.userFrom(c)
	if !ok {
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "auction not found"})
		return
	}

	now := time.Now()
	if !a.Open() || now.After(a.EndAt) {
		c.JSON(http.StatusConflict, gin.H{"error": "auction is closed"})
		return
	}
	role := auction.RoleOf(s.participants[a.ID], userID)
	if role != domain.RoleBidder {
		c.JSON(http.StatusForbidden, gin.H{"error": "only bidders may bid"})
		return
	}
	minRequired := a.Baseline() + a.MinIncrement
	if req.Amount < minRequired {
		// Undercut: the client's view of the highest bid was stale.
		c.JSON(http.StatusConflict, gin.H{"error": "bid below current minimum"})
		return
	}

	bid := domain.Bid{
		ID:        uuid.NewString(),
		AuctionID: a.ID,
		BidderID:  userID,
		Amount:    req.Amount,
		PlacedAt:  now,
	}
	merged, highest, _ := auction.ApplyBid(a, s.bids[a.ID], bid)
	s.bids[a.ID] = merged
	a.CurrentHighestBid = highest
	a.UpdatedAt = now

	if env, err := protocol.NewEnvelope(protocol.EventNewBid, a.DealRoomID, protocol.NewBidPayload{Bid: bid}); err == nil {
		s.broadcastLocked(env)
	}
	s.pushAuctionLocked(a)
	c.JSON(http.StatusCreated, bid)
}

// CloseAuction flips an auction to closed and pushes the state event, the
// way the production scheduler does when the window ends.
func (s *Server) CloseAuction(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[auctionID]
	if !ok {
		return
	}
	a.State = domain.AuctionClosed
	a.UpdatedAt = time.Now()
	s.pushAuctionLocked(a)
}

func (s *Server) pushAuctionLocked(a *domain.Auction) {
	payload := protocol.AuctionUpdatedPayload{Auction: *a, Participants: s.participants[a.ID]}
	if env, err := protocol.NewEnvelope(protocol.EventAuctionUpdated, a.DealRoomID, payload); err == nil {
		s.broadcastLocked(env)
	}
}
