package notify

import (
	"bytes"
	"html/template"
)

// DeliveryLine is one book in a notification.
type DeliveryLine struct {
	Title    string
	Author   string
	Download string // empty for books shipped physically
}

// Order carries what every fulfillment message shows.
type Order struct {
	OrderID       string
	Amount        string // already formatted with currency
	CustomerEmail string
	CustomerPhone string
	Books         []DeliveryLine
}

var (
	ebookTmpl = template.Must(template.New("ebook").Parse(`<h2>Merci pour votre achat</h2>
<p>Commande <strong>{{.OrderID}}</strong> ({{.Amount}}).</p>
<p>Vos livres numeriques sont disponibles :</p>
<ul>{{range .Books}}
<li>{{.Title}}{{if .Author}} - {{.Author}}{{end}} : <a href="{{.Download}}">telecharger</a></li>{{end}}
</ul>`))

	physicalTmpl = template.Must(template.New("physical").Parse(`<h2>Votre commande est confirmee</h2>
<p>Commande <strong>{{.OrderID}}</strong> ({{.Amount}}).</p>
<p>Les livres suivants seront livres a votre adresse. Notre equipe vous contactera pour organiser la livraison :</p>
<ul>{{range .Books}}
<li>{{.Title}}{{if .Author}} - {{.Author}}{{end}}</li>{{end}}
</ul>`))

	adminTmpl = template.Must(template.New("admin").Parse(`<h2>Livraison physique a organiser</h2>
<p>Commande <strong>{{.OrderID}}</strong> payee ({{.Amount}}).</p>
<p>Client : {{if .CustomerEmail}}{{.CustomerEmail}}{{else}}inconnu{{end}}{{if .CustomerPhone}} / {{.CustomerPhone}}{{end}}</p>
<ul>{{range .Books}}
<li>{{.Title}}{{if .Author}} - {{.Author}}{{end}}</li>{{end}}
</ul>`))
)

// EbookDelivery renders the download-links message for the buyer.
func EbookDelivery(o Order) (subject, body string, err error) {
	body, err = render(ebookTmpl, o)
	return "Vos livres numeriques - commande " + o.OrderID, body, err
}

// PhysicalDelivery renders the buyer notice for shipped books.
func PhysicalDelivery(o Order) (subject, body string, err error) {
	body, err = render(physicalTmpl, o)
	return "Livraison de votre commande " + o.OrderID, body, err
}

// AdminPhysicalDelivery renders the operator notice for shipped books.
func AdminPhysicalDelivery(o Order) (subject, body string, err error) {
	body, err = render(adminTmpl, o)
	return "[Action] Livraison physique - commande " + o.OrderID, body, err
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
