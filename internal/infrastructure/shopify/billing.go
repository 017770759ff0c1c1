package shopify

import (
	"context"
	"fmt"
	"strings"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/metrics"
	"sectionhub-shopify-layer/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const oneTimeChargeMutation = `
mutation AppPurchaseOneTimeCreate($name: String!, $price: MoneyInput!, $returnUrl: URL!, $test: Boolean) {
  appPurchaseOneTimeCreate(name: $name, price: $price, returnUrl: $returnUrl, test: $test) {
    appPurchaseOneTime { id status }
    confirmationUrl
    userErrors { field message }
  }
}`

const subscriptionChargeMutation = `
mutation AppSubscriptionCreate($name: String!, $lineItems: [AppSubscriptionLineItemInput!]!, $returnUrl: URL!, $trialDays: Int, $test: Boolean) {
  appSubscriptionCreate(name: $name, lineItems: $lineItems, returnUrl: $returnUrl, trialDays: $trialDays, test: $test) {
    appSubscription { id status }
    confirmationUrl
    userErrors { field message }
  }
}`

const chargeStatusQuery = `
query ChargeStatus($id: ID!) {
  node(id: $id) {
    ... on AppPurchaseOneTime { id status }
    ... on AppSubscription { id status }
  }
}`

// operation is a parsed GraphQL document; documents are checked once at startup
type operation struct {
	name     string
	document string
}

func mustOperation(document string) operation {
	doc, err := parser.ParseQuery(&ast.Source{Name: "billing", Input: document})
	if err != nil {
		panic(fmt.Sprintf("invalid billing document: %v", err))
	}
	if len(doc.Operations) != 1 {
		panic("billing document must contain exactly one operation")
	}
	return operation{name: doc.Operations[0].Name, document: document}
}

var (
	opOneTimeCharge      = mustOperation(oneTimeChargeMutation)
	opSubscriptionCharge = mustOperation(subscriptionChargeMutation)
	opChargeStatus       = mustOperation(chargeStatusQuery)
)

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type chargeNode struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type oneTimeChargeResponse struct {
	AppPurchaseOneTimeCreate struct {
		AppPurchaseOneTime *chargeNode `json:"appPurchaseOneTime"`
		ConfirmationURL    string      `json:"confirmationUrl"`
		UserErrors         []userError `json:"userErrors"`
	} `json:"appPurchaseOneTimeCreate"`
}

type subscriptionChargeResponse struct {
	AppSubscriptionCreate struct {
		AppSubscription *chargeNode `json:"appSubscription"`
		ConfirmationURL string      `json:"confirmationUrl"`
		UserErrors      []userError `json:"userErrors"`
	} `json:"appSubscriptionCreate"`
}

type chargeStatusResponse struct {
	Node *chargeNode `json:"node"`
}

// BillingGateway creates and inspects app charges through the Admin GraphQL API
type BillingGateway struct {
	client   *Client
	testMode bool
}

// NewBillingGateway creates a billing gateway. testMode marks charges as test charges.
func NewBillingGateway(client *Client, testMode bool) *BillingGateway {
	return &BillingGateway{client: client, testMode: testMode}
}

var _ ports.BillingGateway = (*BillingGateway)(nil)

func (g *BillingGateway) CreateOneTimeCharge(ctx context.Context, shop, accessToken string, req ports.OneTimeChargeRequest) (*ports.CreatedCharge, error) {
	vars := map[string]interface{}{
		"name":      req.Name,
		"price":     money(req.Price.StringFixed(2)),
		"returnUrl": req.ReturnURL,
		"test":      g.testMode,
	}

	var resp oneTimeChargeResponse
	if err := g.run(ctx, shop, accessToken, opOneTimeCharge, vars, &resp, true); err != nil {
		return nil, err
	}

	result := resp.AppPurchaseOneTimeCreate
	if err := rejected(result.UserErrors); err != nil {
		return nil, err
	}
	if result.AppPurchaseOneTime == nil || result.ConfirmationURL == "" {
		return nil, fmt.Errorf("%s: empty charge in response", opOneTimeCharge.name)
	}

	return &ports.CreatedCharge{
		ExternalID:      LegacyID(result.AppPurchaseOneTime.ID),
		ConfirmationURL: result.ConfirmationURL,
	}, nil
}

func (g *BillingGateway) CreateSubscriptionCharge(ctx context.Context, shop, accessToken string, req ports.SubscriptionChargeRequest) (*ports.CreatedCharge, error) {
	vars := map[string]interface{}{
		"name":      req.Name,
		"returnUrl": req.ReturnURL,
		"trialDays": req.TrialDays,
		"test":      g.testMode,
		"lineItems": []map[string]interface{}{{
			"plan": map[string]interface{}{
				"appRecurringPricingDetails": map[string]interface{}{
					"price":    money(req.Price.StringFixed(2)),
					"interval": platformInterval(req.Interval),
				},
			},
		}},
	}

	var resp subscriptionChargeResponse
	if err := g.run(ctx, shop, accessToken, opSubscriptionCharge, vars, &resp, true); err != nil {
		return nil, err
	}

	result := resp.AppSubscriptionCreate
	if err := rejected(result.UserErrors); err != nil {
		return nil, err
	}
	if result.AppSubscription == nil || result.ConfirmationURL == "" {
		return nil, fmt.Errorf("%s: empty subscription in response", opSubscriptionCharge.name)
	}

	return &ports.CreatedCharge{
		ExternalID:      LegacyID(result.AppSubscription.ID),
		ConfirmationURL: result.ConfirmationURL,
	}, nil
}

// GetChargeStatus is a read and may be retried
func (g *BillingGateway) GetChargeStatus(ctx context.Context, shop, accessToken string, kind domain.ChargeKind, externalID string) (ports.PlatformChargeStatus, error) {
	var resp chargeStatusResponse
	vars := map[string]interface{}{"id": GlobalID(kind, externalID)}
	if err := g.run(ctx, shop, accessToken, opChargeStatus, vars, &resp, false); err != nil {
		return "", err
	}
	if resp.Node == nil {
		return "", fmt.Errorf("charge %s: %w", externalID, domain.ErrNotFound)
	}
	return ports.PlatformChargeStatus(strings.ToUpper(resp.Node.Status)), nil
}

func (g *BillingGateway) run(ctx context.Context, shop, accessToken string, op operation, vars map[string]interface{}, resp interface{}, mutation bool) error {
	client, err := g.client.shopClient(shop, accessToken, mutation)
	if err != nil {
		return err
	}
	timer := prometheus.NewTimer(metrics.PlatformCallDuration.WithLabelValues(op.name))
	defer timer.ObserveDuration()

	if err := client.GraphQL.Query(ctx, op.document, vars, resp); err != nil {
		g.client.logger.Error().
			Err(err).
			Str("shop", shop).
			Str("operation", op.name).
			Msg("Billing API call failed")
		return classify(op.name, err)
	}
	return nil
}

func rejected(errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	return &domain.BillingRejectedError{
		Field:   strings.Join(errs[0].Field, "."),
		Message: errs[0].Message,
	}
}

func money(amount string) map[string]interface{} {
	return map[string]interface{}{"amount": amount, "currencyCode": "USD"}
}

func platformInterval(i domain.PlanInterval) string {
	if i == domain.IntervalAnnual {
		return "ANNUAL"
	}
	return "EVERY_30_DAYS"
}

// LegacyID extracts the numeric id the billing return URL carries as charge_id
// from a global id such as gid://shopify/AppPurchaseOneTime/1017262346.
func LegacyID(gid string) string {
	if i := strings.LastIndex(gid, "/"); i >= 0 {
		return gid[i+1:]
	}
	return gid
}

// GlobalID rebuilds the global id of a charge from its kind and numeric id
func GlobalID(kind domain.ChargeKind, externalID string) string {
	if kind == domain.ChargeSubscription {
		return "gid://shopify/AppSubscription/" + externalID
	}
	return "gid://shopify/AppPurchaseOneTime/" + externalID
}
