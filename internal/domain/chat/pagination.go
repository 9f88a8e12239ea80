package chat

// PageInfo describes one retrieval window over a conversation log.
type PageInfo struct {
	Page    int
	Limit   int
	Total   int
	HasNext bool
}

// Page slices the log walking backward from the most recent message and
// returns the window re-reversed into chronological order. Ordering is
// by Seq, so repeated calls with no intervening appends are identical.
func (c *Conversation) Page(page, limit int) ([]Message, PageInfo) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	total := len(c.Messages)

	// Window [(page-1)*limit, +limit) over the descending view maps to
	// [total-page*limit, total-(page-1)*limit) over the stored ascending
	// log, which is already the natural reading order.
	end := total - (page-1)*limit
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	window := make([]Message, end-start)
	copy(window, c.Messages[start:end])

	return window, PageInfo{
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasNext: (page-1)*limit+len(window) < total,
	}
}
