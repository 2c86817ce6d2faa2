package exchange

import (
	"fmt"
	"strings"

	"github.com/krobus00/bracket-bot/internal/config"
	"github.com/krobus00/bracket-bot/internal/constant"
	"github.com/krobus00/bracket-bot/internal/entity"
)

// NewExchangeGateway builds the gateway selected by exchange.mode. Paper mode still reads
// prices from the public Lighter endpoints.
func NewExchangeGateway(exchangeConfig config.ExchangeConfig, botConfig config.BracketBotConfig) (entity.ExchangeGateway, error) {
	name := strings.ToLower(strings.TrimSpace(exchangeConfig.Name))
	if name != "" && name != string(entity.ExchangeLighter) {
		return nil, fmt.Errorf("unsupported exchange: %s", exchangeConfig.Name)
	}

	switch strings.ToLower(strings.TrimSpace(exchangeConfig.Mode)) {
	case constant.ExchangeModeLive:
		signer := NewHTTPTxSigner(exchangeConfig.SignerURL, exchangeConfig.RequestTimeout)
		return NewLighterExchange(exchangeConfig, signer), nil
	case constant.ExchangeModePaper, "":
		marketData := NewLighterExchange(exchangeConfig, nil)
		return NewPaperExchange(marketData, PaperConfig{
			Symbol:     botConfig.Market,
			MarketID:   botConfig.MarketID,
			PriceScale: botConfig.PriceScale,
			SizeScale:  botConfig.SizeScale,
			Balance:    exchangeConfig.PaperBalance,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported exchange mode: %s", exchangeConfig.Mode)
	}
}
