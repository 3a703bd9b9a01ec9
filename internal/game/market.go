package game

import "sort"

// StockMarket is the sole authority for share movements. Every mutation is
// validated up front and either fully applied or fully rejected.
type StockMarket struct {
	ledger  *Ledger
	players []*Player
}

func NewStockMarket(ledger *Ledger, players []*Player) *StockMarket {
	return &StockMarket{ledger: ledger, players: players}
}

// Buy moves one share of c to the player. A non-positive price means
// "charge the current market price"; clients that quote the price they
// saw are charged exactly that.
func (m *StockMarket) Buy(p *Player, c *Corporation, price int) error {
	if !c.Active {
		return ErrCorporationRetired
	}
	if c.RemainingShares < 1 {
		return ErrNoSharesLeft
	}
	if price <= 0 {
		price = c.Stats().Price
	}
	if p.Balance < price {
		return ErrInsufficientFunds
	}
	p.Balance -= price
	p.Shares[c.ID]++
	c.RemainingShares--
	return nil
}

// BuyBatch applies Buy in order. Failed purchases are skipped, not
// reported as errors; the successful ones are returned. Availability is
// consumed within the batch, so a player cannot overdraw by batching.
func (m *StockMarket) BuyBatch(p *Player, orders []Purchase) []Purchase {
	var done []Purchase
	for _, o := range orders {
		c, ok := m.ledger.Get(o.Corp)
		if !ok {
			continue
		}
		price := o.Price
		if price <= 0 {
			price = c.Stats().Price
		}
		if err := m.Buy(p, c, price); err != nil {
			continue
		}
		done = append(done, Purchase{Corp: c.ID, Price: price})
	}
	return done
}

// Sell returns n of the player's shares in c at the current price.
func (m *StockMarket) Sell(p *Player, c *Corporation, n int) error {
	if n < 0 {
		return ErrInsufficientShares
	}
	if p.Shares[c.ID] < n {
		return ErrInsufficientShares
	}
	price := c.Stats().Price
	p.Balance += n * price
	p.Shares[c.ID] -= n
	c.RemainingShares += n
	return nil
}

// Trade converts n defunct shares into n/2 acquirer shares. The odd
// residual share is forfeited.
func (m *StockMarket) Trade(p *Player, defunct, acquirer *Corporation, n int) error {
	if n < 0 {
		return ErrInsufficientShares
	}
	gained := n / 2
	if p.Shares[defunct.ID] < n {
		return ErrInsufficientShares
	}
	if acquirer.RemainingShares < gained {
		return ErrNoSharesLeft
	}
	p.Shares[defunct.ID] -= n
	defunct.RemainingShares += n
	p.Shares[acquirer.ID] += gained
	acquirer.RemainingShares -= gained
	return nil
}

// ShareholderGroups partitions holders of c into the majority group (top
// share count) and minority group (next distinct count). When the top
// count is shared and no second count exists, the minority group equals
// the majority group.
type ShareholderGroups struct {
	Majority []*Player
	Minority []*Player
}

func (m *StockMarket) ShareholderGroups(c *Corporation) ShareholderGroups {
	byCount := make(map[int][]*Player)
	var counts []int
	for _, p := range m.players {
		n := p.Shares[c.ID]
		if n < 1 {
			continue
		}
		if _, ok := byCount[n]; !ok {
			counts = append(counts, n)
		}
		byCount[n] = append(byCount[n], p)
	}
	if len(counts) == 0 {
		return ShareholderGroups{}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))

	groups := ShareholderGroups{Majority: byCount[counts[0]]}
	if len(counts) > 1 {
		groups.Minority = byCount[counts[1]]
	} else if len(groups.Majority) > 1 {
		groups.Minority = groups.Majority
	}
	return groups
}

// BonusPayout records who received what when a chain paid out.
type BonusPayout struct {
	Corp    CorpID         `json:"corporation"`
	Amounts map[string]int `json:"amounts"`
}

// DistributeBonuses pays majority/minority bonuses for c. Integer floor
// division throughout; residuals vanish.
func (m *StockMarket) DistributeBonuses(c *Corporation) BonusPayout {
	payout := BonusPayout{Corp: c.ID, Amounts: make(map[string]int)}
	groups := m.ShareholderGroups(c)
	if len(groups.Majority) == 0 {
		return payout
	}
	stats := c.Stats()
	if len(groups.Majority) > 1 || len(groups.Minority) == 0 {
		pool := stats.MajorityBonus + stats.MinorityBonus
		each := pool / len(groups.Majority)
		for _, p := range groups.Majority {
			p.Balance += each
			payout.Amounts[p.Username] += each
		}
		return payout
	}
	sole := groups.Majority[0]
	sole.Balance += stats.MajorityBonus
	payout.Amounts[sole.Username] += stats.MajorityBonus
	each := stats.MinorityBonus / len(groups.Minority)
	for _, p := range groups.Minority {
		p.Balance += each
		payout.Amounts[p.Username] += each
	}
	return payout
}

// Liquidate force-sells every player's holding in c at the current price,
// then retires the chain.
func (m *StockMarket) Liquidate(c *Corporation) {
	price := c.Stats().Price
	for _, p := range m.players {
		n := p.Shares[c.ID]
		if n < 1 {
			continue
		}
		p.Balance += n * price
		p.Shares[c.ID] = 0
		c.RemainingShares += n
	}
	c.Active = false
}
