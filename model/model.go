package model

import "time"

// Message is one chat message. Content holds ciphertext at rest and in
// transit; layers that hand messages to the UI replace it with plaintext.
type Message struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"matchId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Match is a mutual match between two users; it scopes both the
// conversation key and the realtime channel names.
type Match struct {
	ID        string    `json:"id"`
	User1ID   string    `json:"user1Id"`
	User2ID   string    `json:"user2Id"`
	MatchedAt time.Time `json:"matchedAt"`
}

// Other returns the participant that is not userID.
func (m Match) Other(userID string) string {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// Profile is the subset of a user profile the messaging surface needs.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PhotoPath   string `json:"photoPath"`
}

// Conversation is one row of the conversation list: the match, the peer's
// display data, the latest message (decrypted) and the unread count.
type Conversation struct {
	Match        Match    `json:"match"`
	Peer         Profile  `json:"peer"`
	PeerPhotoURL string   `json:"peerPhotoUrl,omitempty"`
	LastMessage  *Message `json:"lastMessage,omitempty"`
	UnreadCount  int      `json:"unreadCount"`
}

// TypingStatus is the ephemeral typing indicator delivered over the
// broadcast channel. It is never persisted.
type TypingStatus struct {
	MatchID   string    `json:"matchId"`
	UserID    string    `json:"userId"`
	IsTyping  bool      `json:"isTyping"`
	Timestamp time.Time `json:"timestamp"`
}
