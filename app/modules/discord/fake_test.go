package discord

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation"
)

var notFound = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}

// FakeSession implements Session. Sent messages get sequential ids.
type FakeSession struct {
	mu   sync.Mutex
	Sent []*discordgo.MessageSend
	next int

	SendFunc    func(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error)
	DeleteFunc  func(channelID, messageID string) error
	MessageFunc func(channelID, messageID string) (*discordgo.Message, error)
	MemberFunc  func(guildID, userID string) (*discordgo.Member, error)
	GuildFunc   func(guildID string) (*discordgo.Guild, error)
}

func (f *FakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	f.Sent = append(f.Sent, data)
	f.next++
	id := "M" + strconv.Itoa(f.next)
	f.mu.Unlock()
	if f.SendFunc != nil {
		return f.SendFunc(channelID, data)
	}
	return &discordgo.Message{ID: id, ChannelID: channelID, Content: data.Content}, nil
}

func (f *FakeSession) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	if f.DeleteFunc != nil {
		return f.DeleteFunc(channelID, messageID)
	}
	return nil
}

func (f *FakeSession) ChannelMessage(channelID, messageID string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.MessageFunc != nil {
		return f.MessageFunc(channelID, messageID)
	}
	return nil, notFound
}

func (f *FakeSession) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	if f.MemberFunc != nil {
		return f.MemberFunc(guildID, userID)
	}
	return nil, notFound
}

func (f *FakeSession) Guild(guildID string, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	if f.GuildFunc != nil {
		return f.GuildFunc(guildID)
	}
	return &discordgo.Guild{ID: guildID, Name: "guild-" + guildID}, nil
}

// FakeMembers implements MemberCache over a map keyed by guild and user id.
type FakeMembers struct {
	mu      sync.Mutex
	members map[string]*discordgo.Member
}

func NewFakeMembers(members ...*discordgo.Member) *FakeMembers {
	f := &FakeMembers{members: map[string]*discordgo.Member{}}
	for _, m := range members {
		_ = f.MemberAdd(m)
	}
	return f
}

func (f *FakeMembers) Member(guildID, userID string) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.members[guildID+"/"+userID]; ok {
		return m, nil
	}
	return nil, discordgo.ErrStateNotFound
}

func (f *FakeMembers) MemberAdd(member *discordgo.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[member.GuildID+"/"+member.User.ID] = member
	return nil
}

type run struct {
	sess    conversation.Session
	flow    conversation.Flow
	prefill []string
}

// FakeConversations records started flows on Runs and dispatched messages.
type FakeConversations struct {
	mu         sync.Mutex
	Runs       chan run
	dispatched []string
	Waiting    bool
}

func NewFakeConversations() *FakeConversations {
	return &FakeConversations{Runs: make(chan run, 8)}
}

func (f *FakeConversations) Run(_ context.Context, sess conversation.Session, flow conversation.Flow, prefill []string) error {
	f.Runs <- run{sess: sess, flow: flow, prefill: prefill}
	return nil
}

func (f *FakeConversations) Dispatch(key conversation.Key, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, key.UserID+"@"+key.ChannelID+":"+text)
	return f.Waiting
}

func (f *FakeConversations) Dispatched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dispatched...)
}

// FakeSender records replies.
type FakeSender struct {
	mu      sync.Mutex
	replies []string
}

func (f *FakeSender) Reply(_ context.Context, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	return nil
}

func (f *FakeSender) Replies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.replies...)
}
