package chat

import (
	"context"
	"errors"
	"sort"
	"strings"

	"adboard/internal/app/dto"
	"adboard/internal/app/policies"
	"adboard/internal/app/queries"
	"adboard/internal/app/uow"
	domainchat "adboard/internal/domain/chat"
)

const listConversationsKey = "chat.list_conversations"

type Filter string

const (
	FilterAll        Filter = "all"
	FilterUnread     Filter = "unread"
	FilterMyAds      Filter = "my-ads"
	FilterOthersAds  Filter = "others-ads"
	FilterSuspicious Filter = "suspicious"
)

var ErrUnknownFilter = errors.New("chat: unknown conversation filter")

// ParseFilter resolves the wire value, defaulting empty input to all.
func ParseFilter(raw string) (Filter, error) {
	switch Filter(strings.TrimSpace(raw)) {
	case "":
		return FilterAll, nil
	case FilterAll, FilterUnread, FilterMyAds, FilterOthersAds, FilterSuspicious:
		return Filter(raw), nil
	default:
		return "", ErrUnknownFilter
	}
}

type ListConversationsQuery struct {
	RequesterID string
	Filter      Filter
}

func (q ListConversationsQuery) Key() string { return listConversationsKey }

type ListConversationsHandler struct {
	UoWFactory uow.UoWFactory
	Ownership  policies.OwnershipPort
	Directory  policies.UserDirectory
}

func (h *ListConversationsHandler) Handle(ctx context.Context, q ListConversationsQuery) (dto.ConversationList, error) {
	filter := q.Filter
	if filter == "" {
		filter = FilterAll
	}
	scope, ctx, err := beginScope(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.ConversationList{}, err
	}
	defer scope.Close(ctx)

	all, err := scope.Conversations().ListByParticipant(ctx, q.RequesterID)
	if err != nil {
		return dto.ConversationList{}, err
	}

	active := all[:0:0]
	for _, conv := range all {
		if conv.IsActive {
			active = append(active, conv)
		}
	}

	matched, err := h.applyFilter(ctx, active, q.RequesterID, filter)
	if err != nil {
		return dto.ConversationList{}, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	list := dto.ConversationList{Items: make([]dto.ConversationSummary, 0, len(matched))}
	names := h.peerNames(ctx, matched, q.RequesterID)
	for _, conv := range matched {
		summary := mapSummary(conv, q.RequesterID)
		if peer, err := conv.Peer(q.RequesterID); err == nil {
			summary.PeerDisplayName = names[peer]
		}
		list.Items = append(list.Items, summary)
	}
	return list, nil
}

func (h *ListConversationsHandler) applyFilter(ctx context.Context, active []*domainchat.Conversation, requesterID string, filter Filter) ([]*domainchat.Conversation, error) {
	switch filter {
	case FilterAll:
		return active, nil
	case FilterUnread:
		out := active[:0:0]
		for _, conv := range active {
			if conv.HasUnreadFor(requesterID) {
				out = append(out, conv)
			}
		}
		return out, nil
	case FilterSuspicious:
		out := active[:0:0]
		for _, conv := range active {
			if conv.IsSuspicious {
				out = append(out, conv)
			}
		}
		return out, nil
	case FilterMyAds, FilterOthersAds:
		return h.partitionByOwnership(ctx, active, requesterID, filter)
	default:
		return nil, ErrUnknownFilter
	}
}

// partitionByOwnership splits threads by whether the requester owns the
// ad. One batched lookup per request; ads the adapter cannot resolve
// fall out of both partitions.
func (h *ListConversationsHandler) partitionByOwnership(ctx context.Context, active []*domainchat.Conversation, requesterID string, filter Filter) ([]*domainchat.Conversation, error) {
	if h.Ownership == nil {
		return nil, errors.New("chat: ownership adapter unavailable")
	}
	seen := make(map[string]struct{}, len(active))
	adIDs := make([]string, 0, len(active))
	for _, conv := range active {
		if _, ok := seen[conv.AdID]; ok {
			continue
		}
		seen[conv.AdID] = struct{}{}
		adIDs = append(adIDs, conv.AdID)
	}
	owners, err := h.Ownership.OwnerOf(ctx, adIDs)
	if err != nil {
		return nil, err
	}
	out := active[:0:0]
	for _, conv := range active {
		owner, resolved := owners[conv.AdID]
		if !resolved {
			continue
		}
		mine := owner == requesterID
		if (filter == FilterMyAds && mine) || (filter == FilterOthersAds && !mine) {
			out = append(out, conv)
		}
	}
	return out, nil
}

// peerNames resolves display names for the other side of each thread,
// once per distinct peer. Resolution failures leave the name empty;
// list views degrade rather than fail.
func (h *ListConversationsHandler) peerNames(ctx context.Context, matched []*domainchat.Conversation, requesterID string) map[string]string {
	names := make(map[string]string)
	if h.Directory == nil {
		return names
	}
	for _, conv := range matched {
		peer, err := conv.Peer(requesterID)
		if err != nil {
			continue
		}
		if _, ok := names[peer]; ok {
			continue
		}
		name, err := h.Directory.DisplayNameOf(ctx, peer)
		if err != nil {
			names[peer] = ""
			continue
		}
		names[peer] = name
	}
	return names
}

var _ queries.Handler[ListConversationsQuery, dto.ConversationList] = (*ListConversationsHandler)(nil)
