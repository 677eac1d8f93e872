package profile

// Listing holds the summary fields scraped from one search result card.
// A Listing alone is enough to build a basic profile.
type Listing struct {
	Source      Source
	Name        string
	URL         string // detail page, when the card links to one
	Location    string
	Phone       string
	Website     string
	Summary     string // bio preview or category line
	Specialties string // raw specialty text from the card
	Rating      string
}

// Detail holds the fields scraped from a listing's detail page.
// Detail is only ever combined with the Listing it was fetched for.
type Detail struct {
	Bio         string
	Phone       string
	Website     string
	Experience  string
	Credentials string
	Text        string // full visible text of the page
}

// Text returns all free text of the listing joined for keyword scanning.
func (l *Listing) Text() string {
	return joinNonEmpty(l.Name, l.Summary, l.Specialties, l.Location)
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}
