package dapicsync

import (
	"encoding/json"
	"strings"
)

// Upstream page envelope. Depending on the endpoint version the record list
// arrives under "Resultado" or "Dados".
type dapicPage struct {
	Resultado []json.RawMessage `json:"Resultado"`
	Dados     []json.RawMessage `json:"Dados"`
}

func (p dapicPage) records() []json.RawMessage {
	if len(p.Resultado) > 0 {
		return p.Resultado
	}
	return p.Dados
}

// Duck-typed upstream sale. Field names vary between Dapic endpoint
// versions; every alternative is declared here and resolved once, at the
// adapter boundary, into a RawSale.
type dapicSale struct {
	Codigo         json.Number       `json:"Codigo"`
	CodigoVenda    json.Number       `json:"CodigoVenda"`
	DataFechamento string            `json:"DataFechamento"`
	DataEmissao    string            `json:"DataEmissao"`
	Data           string            `json:"Data"`
	ValorLiquido   json.RawMessage   `json:"ValorLiquido"`
	ValorTotal     json.RawMessage   `json:"ValorTotal"`
	NomeVendedor   string            `json:"NomeVendedor"`
	Vendedor       string            `json:"Vendedor"`
	Situacao       string            `json:"Situacao"`
	Itens          []dapicSaleItem   `json:"Itens"`
	Recebimentos   []dapicRecebmento `json:"Recebimentos"`
}

type dapicSaleItem struct {
	CodigoProduto json.Number     `json:"CodigoProduto"`
	Descricao     string          `json:"Descricao"`
	Quantidade    json.RawMessage `json:"Quantidade"`
	ValorUnitario json.RawMessage `json:"ValorUnitario"`
	ValorTotal    json.RawMessage `json:"ValorTotal"`
}

type dapicRecebmento struct {
	FormaPagamento string          `json:"FormaPagamento"`
	ValorBruto     json.RawMessage `json:"ValorBruto"`
	Valor          json.RawMessage `json:"Valor"`
	ValorLiquido   json.RawMessage `json:"ValorLiquido"`
}

// RawSale is the single canonical record type business logic sees. Dates and
// currency values stay textual here; the sync pipeline parses them with the
// documented lossy fallbacks.
type RawSale struct {
	SaleCode   string
	CloseDate  string
	TotalValue string
	SellerName string
	Status     string
	Items      []RawItem
	Receipts   []RawReceipt
}

type RawItem struct {
	ProductCode string
	Description string
	Quantity    string
	UnitPrice   string
	TotalPrice  string
}

type RawReceipt struct {
	PaymentMethod string
	GrossValue    string
	NetValue      string
}

// rawValue renders a JSON number-or-string field as text, stripping quotes.
func rawValue(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err == nil {
			return strings.TrimSpace(unquoted)
		}
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// toRawSale resolves the duck-typed alternatives into the canonical record.
func (s dapicSale) toRawSale() RawSale {
	out := RawSale{
		SaleCode:   firstNonEmpty(s.Codigo.String(), s.CodigoVenda.String()),
		CloseDate:  firstNonEmpty(s.DataFechamento, s.DataEmissao, s.Data),
		TotalValue: firstNonEmpty(rawValue(s.ValorLiquido), rawValue(s.ValorTotal)),
		SellerName: firstNonEmpty(s.NomeVendedor, s.Vendedor),
		Status:     strings.TrimSpace(s.Situacao),
	}
	// json.Number renders missing fields as "" and zero as "0".
	if out.SaleCode == "0" {
		out.SaleCode = ""
	}
	for _, item := range s.Itens {
		out.Items = append(out.Items, RawItem{
			ProductCode: item.CodigoProduto.String(),
			Description: strings.TrimSpace(item.Descricao),
			Quantity:    rawValue(item.Quantidade),
			UnitPrice:   rawValue(item.ValorUnitario),
			TotalPrice:  rawValue(item.ValorTotal),
		})
	}
	for _, rec := range s.Recebimentos {
		out.Receipts = append(out.Receipts, RawReceipt{
			PaymentMethod: strings.TrimSpace(rec.FormaPagamento),
			GrossValue:    firstNonEmpty(rawValue(rec.ValorBruto), rawValue(rec.Valor)),
			NetValue:      firstNonEmpty(rawValue(rec.ValorLiquido), rawValue(rec.Valor)),
		})
	}
	return out
}

type dapicTokenResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (r dapicTokenResponse) bearer() string {
	if strings.TrimSpace(r.AccessToken) != "" {
		return strings.TrimSpace(r.AccessToken)
	}
	return strings.TrimSpace(r.Token)
}
