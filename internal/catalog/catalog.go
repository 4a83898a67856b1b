// Package catalog содержит фиксированный список проектов и подсказки по категориям.
package catalog

import "analysis-bot/internal/domain"

// Category описывает акценты, на которые стоит опираться в тексте.
type Category struct {
	FocusAreas []string
	KeyMetrics []string
}

var categories = map[string]Category{
	"DeFi": {
		FocusAreas: []string{"trading", "liquidity", "yield farming", "lending", "derivatives"},
		KeyMetrics: []string{"TVL", "volume", "fees generated", "user growth"},
	},
	"Layer 1": {
		FocusAreas: []string{"consensus", "scalability", "decentralization", "security"},
		KeyMetrics: []string{"TPS", "validator count", "network effects", "developer activity"},
	},
	"Layer 2": {
		FocusAreas: []string{"scaling", "fees", "security", "interoperability"},
		KeyMetrics: []string{"transaction cost", "throughput", "bridge security", "adoption"},
	},
	"Infrastructure": {
		FocusAreas: []string{"developer tools", "interoperability", "performance", "composability"},
		KeyMetrics: []string{"developer adoption", "integration count", "performance benchmarks"},
	},
	"Gaming": {
		FocusAreas: []string{"user experience", "economics", "NFTs", "metaverse"},
		KeyMetrics: []string{"player count", "retention", "in-game economy", "asset trading"},
	},
	"Social": {
		FocusAreas: []string{"user experience", "content creation", "monetization", "community"},
		KeyMetrics: []string{"user growth", "engagement", "content volume", "creator economy"},
	},
	"Identity": {
		FocusAreas: []string{"privacy", "verification", "reputation", "compliance"},
		KeyMetrics: []string{"verification rate", "privacy guarantees", "adoption by institutions"},
	},
	"AI": {
		FocusAreas: []string{"automation", "intelligence", "personalization", "efficiency"},
		KeyMetrics: []string{"AI accuracy", "user satisfaction", "automation level", "cost reduction"},
	},
}

var projects = []domain.Subject{
	{Name: "Infinex", Website: "infinex.xyz", Handle: "@infinex", Description: "DeFi trading platform focused on perpetual futures", Category: "DeFi"},
	{Name: "Espresso", Website: "espressosys.com", Handle: "@EspressoSys", Description: "Blockchain infrastructure for decentralized sequencing", Category: "Infrastructure"},
	{Name: "Boop", Website: "boop.fun", Handle: "@boopdotfun", Description: "Social platform for blockchain interactions", Category: "Social"},
	{Name: "Somnia", Website: "somnia.network", Handle: "@Somnia_Network", Description: "High-performance blockchain for gaming and virtual worlds", Category: "Gaming"},
	{Name: "Openledger", Website: "openledger.xyz", Handle: "@OpenledgerHQ", Description: "Decentralized ledger infrastructure", Category: "Infrastructure"},
	{Name: "Sei", Website: "sei.io", Handle: "@SeiNetwork", Description: "Purpose-built Layer 1 blockchain for trading", Category: "Layer 1"},
	{Name: "Sophon", Website: "sophon.xyz", Handle: "@sophon", Description: "Entertainment-focused blockchain ecosystem", Category: "Entertainment"},
	{Name: "Soon", Website: "soon.app", Handle: "@soon_svm", Description: "Solana Virtual Machine implementation", Category: "Infrastructure"},
	{Name: "Huma Finance", Website: "humafinance.com", Handle: "@humafinance", Description: "Real-world asset tokenization platform", Category: "RWA"},
	{Name: "Sunrise", Website: "sunriselayer.com", Handle: "@SunriseLayer", Description: "Data availability layer for blockchain scalability", Category: "Infrastructure"},
	{Name: "Skate", Website: "skatechain.com", Handle: "@skate_chain", Description: "Universal app chain for multi-chain applications", Category: "Infrastructure"},
	{Name: "dYdX", Website: "dydx.exchange", Handle: "@dYdX", Description: "Decentralized derivatives exchange", Category: "DeFi"},
	{Name: "Maplestory Universe", Website: "maplestoryu.com", Handle: "@MaplestoryU", Description: "Blockchain gaming metaverse", Category: "Gaming"},
	{Name: "Camp Network", Website: "campnetwork.xyz", Handle: "@campnetworkxyz", Description: "Modular blockchain for consumer applications", Category: "Infrastructure"},
	{Name: "Arbitrum", Website: "arbitrum.org", Handle: "@arbitrum", Description: "Ethereum Layer 2 scaling solution", Category: "Layer 2"},
	{Name: "Polkadot", Website: "polkadot.network", Handle: "@Polkadot", Description: "Multi-chain blockchain protocol", Category: "Layer 1"},
	{Name: "Lombard", Website: "lombard.finance", Handle: "@Lombard_Finance", Description: "Bitcoin liquid staking protocol", Category: "DeFi"},
	{Name: "Fomo", Website: "tryfomo.com", Handle: "@tryfomo", Description: "Social trading platform", Category: "Social"},
	{Name: "Humanity Protocol", Website: "humanityprot.org", Handle: "@Humanityprot", Description: "Human identity verification protocol", Category: "Identity"},
	{Name: "Mantle", Website: "mantlenetwork.io", Handle: "@Mantle_Official", Description: "Ethereum Layer 2 with modular architecture", Category: "Layer 2"},
	{Name: "Newton", Website: "magicnewton.com", Handle: "@MagicNewton", Description: "AI-powered blockchain analytics", Category: "Analytics"},
	{Name: "Novastro", Website: "novastro.xyz", Handle: "@Novastro_xyz", Description: "Decentralized space exploration platform", Category: "Utility"},
	{Name: "Satlayer", Website: "satlayer.com", Handle: "@satlayer", Description: "Bitcoin restaking infrastructure", Category: "Infrastructure"},
	{Name: "Soul", Website: "0xsoulprotocol.com", Handle: "@0xSoulProtocol", Description: "Decentralized identity and reputation system", Category: "Identity"},
	{Name: "Virtuals", Website: "virtuals.io", Handle: "@virtuals_io", Description: "AI agents marketplace for virtual interactions", Category: "AI"},
}

// Projects возвращает копию каталога, все проекты активны.
func Projects() []domain.Subject {
	out := make([]domain.Subject, len(projects))
	for i, p := range projects {
		p.IsActive = true
		out[i] = p
	}
	return out
}

// CategoryInfo возвращает подсказки для категории. Для неизвестных категорий ok == false.
func CategoryInfo(name string) (Category, bool) {
	c, ok := categories[name]
	return c, ok
}

// Categories возвращает отсортированный по первому появлению список категорий каталога.
func Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range projects {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}
