package main

import (
	"errors"
	"fmt"

	"github.com/lox/passthepresent/internal/deck"
)

type CardCmd struct {
	Draw   CardDrawCmd   `cmd:"" help:"Draw a card from the deck"`
	Return CardReturnCmd `cmd:"" help:"Put the current card back in the deck"`
	Save   CardSaveCmd   `cmd:"" help:"Give the current card to a player to keep"`
	Use    CardUseCmd    `cmd:"" help:"Play a card a player kept"`
	List   CardListCmd   `cmd:"" help:"List the cards left in the deck"`
	Clear  CardClearCmd  `cmd:"" help:"Put the current card on the discard pile"`
}

func (a *App) printCard(card deck.Card) {
	kind := "game"
	if card.Type == deck.TypeChance {
		kind = "chance"
	}
	fmt.Fprintf(a.out, "%s [%s] %s\n", card.ID, kind, a.tr.T(card.Text))
}

func (a *App) currentCard() (deck.Card, error) {
	card := a.game.Snapshot().CardDeck.CurrentCard
	if card == nil {
		return deck.Card{}, errors.New(a.tr.T("ui.noCard"))
	}
	return *card, nil
}

type CardDrawCmd struct{}

func (c *CardDrawCmd) Run(app *App) error {
	card, ok := app.game.DrawCard()
	if !ok {
		return errors.New(app.tr.T("ui.deckEmpty"))
	}
	app.printCard(card)
	if card.IsSaveCard {
		fmt.Fprintln(app.out, "Keep it with: passthepresent card save <player>")
	}
	return nil
}

type CardReturnCmd struct{}

func (c *CardReturnCmd) Run(app *App) error {
	card, err := app.currentCard()
	if err != nil {
		return err
	}
	if !app.game.ReturnCard(card) {
		return fmt.Errorf("card %s cannot go back into the deck", card.ID)
	}
	return nil
}

type CardSaveCmd struct {
	Player string `arg:"" help:"Player who keeps the card"`
}

func (c *CardSaveCmd) Run(app *App) error {
	card, err := app.currentCard()
	if err != nil {
		return err
	}
	if !app.game.SaveCard(card, c.Player) {
		return fmt.Errorf("card %s is already kept by another player", card.ID)
	}
	fmt.Fprintf(app.out, "%s: ", c.Player)
	app.printCard(card)
	return nil
}

type CardUseCmd struct {
	Player string `arg:"" help:"Player who plays the card"`
	Card   string `arg:"" help:"Card id"`
}

func (c *CardUseCmd) Run(app *App) error {
	if !app.game.UseSavedCard(c.Player, c.Card) {
		return fmt.Errorf("%s does not hold card %s", c.Player, c.Card)
	}
	if card, ok := app.game.Catalog().Card(c.Card); ok {
		app.printCard(card)
	}
	return nil
}

type CardListCmd struct {
	Saved string `help:"List the cards this player kept instead"`
}

func (c *CardListCmd) Run(app *App) error {
	if c.Saved != "" {
		for _, card := range app.game.PlayerSavedCards(c.Saved) {
			app.printCard(card)
		}
		return nil
	}
	s := app.game.Snapshot()
	for _, card := range s.CardDeck.Available {
		app.printCard(card)
	}
	_, err := fmt.Fprintf(app.out, "%d %s\n", len(s.CardDeck.Available), app.tr.T("ui.cardsLeft"))
	return err
}

type CardClearCmd struct{}

func (c *CardClearCmd) Run(app *App) error {
	app.game.ClearCurrentCard()
	return nil
}
