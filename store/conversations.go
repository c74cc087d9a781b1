package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kindredapp/kindred/model"
)

// conversationFetchers bounds the parallel per-match enrichment fan-out.
const conversationFetchers = 8

// ListConversations returns one summary per match for userID: the peer's
// profile and photo URL, the latest message decrypted for display and the
// unread count. Per-match fetches run in parallel rather than as N
// sequential round trips. Read failures degrade to an empty slice;
// per-conversation enrichment failures degrade that entry, not the list.
func (g *Gateway) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	matches, err := g.rows.ListMatches(ctx, userID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ListConversations",
			"user_id":  userID,
			"error":    err.Error(),
		}).Error("Match list read failed, returning empty list")
		return []model.Conversation{}, nil
	}

	out := make([]model.Conversation, len(matches))
	sem := make(chan struct{}, conversationFetchers)
	var wg sync.WaitGroup
	for i, m := range matches {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, m model.Match) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = g.buildConversation(ctx, userID, m)
		}(i, m)
	}
	wg.Wait()

	// Most recent activity first; matches without messages sort by match time.
	sort.SliceStable(out, func(a, b int) bool {
		return conversationTime(out[a]).After(conversationTime(out[b]))
	})
	return out, nil
}

func (g *Gateway) buildConversation(ctx context.Context, userID string, m model.Match) model.Conversation {
	conv := model.Conversation{Match: m}
	peerID := m.Other(userID)

	peer, err := g.rows.GetProfile(ctx, peerID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "buildConversation",
			"match_id": m.ID,
			"peer_id":  peerID,
			"error":    err.Error(),
		}).Warn("Peer profile fetch failed")
		peer = model.Profile{ID: peerID}
	}
	conv.Peer = peer
	conv.PeerPhotoURL = g.signedPhotoURL(ctx, peer.PhotoPath)

	latest, err := g.rows.LatestMessage(ctx, m.ID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "buildConversation",
			"match_id": m.ID,
			"error":    err.Error(),
		}).Warn("Latest message fetch failed")
	} else if latest != nil {
		decrypted := g.decryptForDisplay(*latest, m)
		conv.LastMessage = &decrypted
	}

	unread, err := g.rows.CountUnread(ctx, m.ID, userID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "buildConversation",
			"match_id": m.ID,
			"error":    err.Error(),
		}).Warn("Unread count fetch failed")
	}
	conv.UnreadCount = unread
	return conv
}

func conversationTime(c model.Conversation) time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.Match.MatchedAt
}
