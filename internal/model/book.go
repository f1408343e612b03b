package model

// Book is the slice of the catalog needed for checkout and delivery.  A
// book with an EbookURL is delivered by email; one without is shipped.
type Book struct {
    ID       string // books.id
    Title    string // books.title
    Author   string // books.author
    Price    int64  // books.price (smallest currency unit)
    EbookURL string // books.ebook_url (nullable)
}

// HasEbook reports whether the book can be delivered as a download.
func (b Book) HasEbook() bool { return b.EbookURL != "" }
