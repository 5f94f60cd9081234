package models

import "encoding/json"

// RawRecord is one row extracted from a periodic transaction report, before
// reconciliation. Field names and the json tags mirror the historical export
// format, so the same struct decodes archived transaction dumps and carries
// freshly scraped rows.
type RawRecord struct {
	Name             string     `json:"Name"`
	NotificationDate string     `json:"Notification Date"` // MM/DD/YYYY
	Link             string     `json:"Link"`
	TransactionDate  string     `json:"Transaction Date"` // MM/DD/YYYY
	Owner            string     `json:"Owner"`
	Ticker           TickerCell `json:"Ticker"`
	AssetName        AssetCell  `json:"Asset Name"`
	AssetType        string     `json:"Asset Type"`
	Type             string     `json:"Type"`
	Amount           string     `json:"Amount"`
	Comment          string     `json:"Comment"`

	// Paper marks a scanned filing with no scrapable rows. Only Name,
	// NotificationDate and Link are populated on such records.
	Paper bool `json:"Paper,omitempty"`
}

// TickerCell is the ticker column of a report row. When the source cell
// carries an anchor, Href holds the link target and Text the symbol;
// otherwise only Text is set.
type TickerCell struct {
	Text string
	Href string
}

// UnmarshalJSON accepts either a bare string or a [text, href] pair, the two
// shapes present in historical transaction dumps.
func (c *TickerCell) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) > 0 {
		c.Text = pair[0]
	}
	if len(pair) > 1 {
		c.Href = pair[1]
	}
	return nil
}

// MarshalJSON writes the pair form when a link is present, else the string.
func (c TickerCell) MarshalJSON() ([]byte, error) {
	if c.Href != "" {
		return json.Marshal([]string{c.Text, c.Href})
	}
	return json.Marshal(c.Text)
}

// AssetCell is the asset-name column of a report row. Subtext holds the
// cleaned lines of the nested details block when the cell has one (bond
// rate/maturity or option strike/expiry annotations).
type AssetCell struct {
	Text    string
	Subtext []string
}

// UnmarshalJSON accepts either a bare string or a [text, [lines...]] pair.
func (c *AssetCell) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) > 0 {
		if err := json.Unmarshal(pair[0], &c.Text); err != nil {
			return err
		}
	}
	if len(pair) > 1 {
		if err := json.Unmarshal(pair[1], &c.Subtext); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON writes the pair form when subtext is present, else the string.
func (c AssetCell) MarshalJSON() ([]byte, error) {
	if len(c.Subtext) > 0 {
		return json.Marshal([]any{c.Text, c.Subtext})
	}
	return json.Marshal(c.Text)
}
