package protocol

// Client-emitted event types.
const (
	EventJoinDealRoom    = "join_deal_room"
	EventLeaveDealRoom   = "leave_deal_room"
	EventSendMessage     = "send_message"
	EventTypingStart     = "typing_start"
	EventTypingStop      = "typing_stop"
	EventMarkRead        = "mark_read"
	EventUpdateDealState = "update_deal_state"
	EventPlaceBid        = "place_bid"
)

// Server-pushed event types.
const (
	EventNewMessage       = "new_message"
	EventUserTyping       = "user_typing"
	EventMessagesRead     = "messages_read"
	EventDealStateChanged = "deal_state_changed"
	EventOnlineUsers      = "online_users"
	EventOfferUpdated     = "offer_updated"
	EventNewBid           = "new_bid"
	EventAuctionUpdated   = "auction_updated"
)
