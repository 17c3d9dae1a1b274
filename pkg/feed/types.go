package feed

import (
	"encoding/xml"
)

// RSS represents the root RSS 2.0 element
type RSS struct {
	XMLName xml.Name    `xml:"rss"`
	Version string      `xml:"version,attr"`
	Channel *RSSChannel `xml:"channel"`
}

// RSSChannel represents an RSS channel
type RSSChannel struct {
	XMLName     xml.Name `xml:"channel"`
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Items       []Item   `xml:"item"`
}

// Item represents an item in an RSS feed, in the form it is stored in the history.
// Fields keep the values read from the document, nothing is re-derived on load.
type Item struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	GUID        GUID      `xml:"guid"`
	PubDate     string    `xml:"pubDate"`
	Description string    `xml:"description"`
	Extra       []Element `xml:",any"` // elements we don't produce but keep
}

// GUID is the item's guid element
type GUID struct {
	IsPermaLink string `xml:"isPermaLink,attr,omitempty"`
	Value       string `xml:",chardata"`
}

// Element is an arbitrary child element kept verbatim
type Element struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// Channel holds the channel metadata written on top of the feed
type Channel struct {
	Title string
	Link  string
}
