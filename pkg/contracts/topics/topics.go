package topics

const (
	// Bets
	BetPlaced = "bet_placed"

	// Canal Redis Pub/Sub com uma OddsQuote por mensagem
	OddsBroadcast = "odds_updates_broadcast"
)
