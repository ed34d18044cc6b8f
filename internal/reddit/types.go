package reddit

// Item is one submission from the provider's listing. Optional attributes
// decode to zero values; nothing here is required beyond the id.
type Item struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	SelfText          string            `json:"selftext"`
	IsSelf            bool              `json:"is_self"`
	CreatedUTC        float64           `json:"created_utc"`
	Subreddit         string            `json:"subreddit"`
	Stickied          bool              `json:"stickied"`
	Over18            bool              `json:"over_18"`
	RemovedByCategory string            `json:"removed_by_category"`
	CrosspostParents  []crosspostParent `json:"crosspost_parent_list"`
}

type crosspostParent struct {
	Title string `json:"title"`
}

// Excluded reports whether the item is filtered out before dedup:
// sticky, adult, or removed submissions never enter the pipeline.
func (it Item) Excluded() bool {
	return it.Stickied || it.Over18 || it.RemovedByCategory != ""
}

// CrosspostTitle returns the first crosspost parent's title, if any.
func (it Item) CrosspostTitle() string {
	if len(it.CrosspostParents) == 0 {
		return ""
	}
	return it.CrosspostParents[0].Title
}

// Listing is one page of the reverse-chronological submission listing.
type Listing struct {
	Items []Item
	After string // pagination cursor; empty when the listing is exhausted
}

type listingEnvelope struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data Item `json:"data"`
		} `json:"children"`
	} `json:"data"`
}
