// Package e2e provides end-to-end tests running the full ingest and query
// pipeline over a multi-document corpus.
package e2e

import "fmt"

// CorpusDocument is one document in the end-to-end corpus. Each carries a
// unique signature phrase so scoped queries can assert provenance.
type CorpusDocument struct {
	Filename  string
	Signature string
	Content   string
}

// Corpus holds the documents used by the end-to-end tests.
type Corpus struct {
	Documents []CorpusDocument
	TotalDocs int
}

// BuildCorpus returns a corpus of policy-style documents with varied content.
func BuildCorpus() *Corpus {
	topics := []struct {
		name      string
		signature string
		body      string
	}{
		{"refund-policy", "refund window of 30 days", "Customers may request a refund within 30 days of purchase. The refund window of 30 days applies to all standard orders. Refunds are issued to the original payment method within five business days."},
		{"shipping-policy", "standard shipping takes five days", "Orders ship from our central warehouse. Standard shipping takes five days for domestic addresses. Expedited shipping is available at checkout for an additional fee."},
		{"warranty-terms", "two year limited warranty", "All hardware products carry a two year limited warranty. The warranty covers manufacturing defects but not accidental damage. Warranty claims require proof of purchase."},
		{"privacy-notice", "personal data retained for twelve months", "We collect account and usage information to provide the service. Personal data retained for twelve months after account closure is then deleted. Users may request earlier deletion at any time."},
		{"support-hours", "support desk open weekdays", "The support desk open weekdays from 9am to 6pm handles all customer inquiries. Weekend coverage is limited to critical incidents. Response targets are four hours for standard tickets."},
		{"subscription-terms", "subscriptions renew automatically", "Subscriptions renew automatically at the end of each billing period. Customers can cancel renewal from the account page. Cancellation takes effect at the end of the current period."},
		{"returns-process", "return authorization number required", "A return authorization number required for all returns can be requested online. Items must be returned in original packaging. Return shipping is free for defective items."},
		{"payment-methods", "payments accepted in major currencies", "We accept credit cards, bank transfer, and digital wallets. Payments accepted in major currencies are converted at the daily rate. Invoices are issued for business accounts."},
		{"data-security", "data encrypted at rest and in transit", "Customer data encrypted at rest and in transit protects against interception. Access is limited to authorized personnel. Security reviews run quarterly."},
		{"service-levels", "uptime target of ninety nine point nine percent", "The service carries an uptime target of ninety nine point nine percent measured monthly. Planned maintenance is announced seven days in advance. Service credits apply for missed targets."},
		{"acceptable-use", "automated scraping is prohibited", "Accounts must not be used for unlawful activity. Automated scraping is prohibited without written permission. Violations may result in suspension."},
		{"pricing-tiers", "enterprise tier includes dedicated support", "The free tier covers evaluation use. The enterprise tier includes dedicated support and custom contracts. Tier changes apply from the next billing cycle."},
	}

	docs := make([]CorpusDocument, 0, len(topics)*3)
	for i, tp := range topics {
		// Three revisions per topic so retrieval has near-duplicate competition.
		for rev := 1; rev <= 3; rev++ {
			docs = append(docs, CorpusDocument{
				Filename:  fmt.Sprintf("%s-v%d.txt", tp.name, rev),
				Signature: tp.signature,
				Content:   fmt.Sprintf("Document %d revision %d. %s", i+1, rev, tp.body),
			})
		}
	}
	return &Corpus{Documents: docs, TotalDocs: len(docs)}
}
