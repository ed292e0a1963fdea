package main

import (
	"math/rand"
	"sync"
)

// Item is one entry in the call-out catalog. Emoji is display payload for
// clients; only CanFly matters to scoring.
type Item struct {
	Name   string `json:"name"`
	CanFly bool   `json:"canFly"`
	Emoji  string `json:"emoji,omitempty"`
}

var items = []Item{
	// Birds
	{Name: "PARROT", CanFly: true, Emoji: "🦜"},
	{Name: "EAGLE", CanFly: true, Emoji: "🦅"},
	{Name: "SPARROW", CanFly: true, Emoji: "🐦"},
	{Name: "CROW", CanFly: true, Emoji: "🐦‍⬛"},
	{Name: "PIGEON", CanFly: true, Emoji: "🕊️"},
	{Name: "PEACOCK", CanFly: true, Emoji: "🦚"},
	{Name: "SWAN", CanFly: true, Emoji: "🦢"},
	{Name: "DUCK", CanFly: true, Emoji: "🦆"},
	{Name: "OWL", CanFly: true, Emoji: "🦉"},
	{Name: "FLAMINGO", CanFly: true, Emoji: "🦩"},
	{Name: "VULTURE", CanFly: true, Emoji: "🦅"},
	{Name: "HAWK", CanFly: true, Emoji: "🦅"},
	{Name: "HUMMINGBIRD", CanFly: true, Emoji: "🐦"},
	{Name: "SEAGULL", CanFly: true, Emoji: "🐦"},
	{Name: "WOODPECKER", CanFly: true, Emoji: "🐦"},
	{Name: "KINGFISHER", CanFly: true, Emoji: "🐦"},
	{Name: "CUCKOO", CanFly: true, Emoji: "🐦"},
	{Name: "STORK", CanFly: true, Emoji: "🦩"},
	{Name: "PELICAN", CanFly: true, Emoji: "🦆"},
	{Name: "TOUCAN", CanFly: true, Emoji: "🦜"},

	// Insects
	{Name: "BUTTERFLY", CanFly: true, Emoji: "🦋"},
	{Name: "BEE", CanFly: true, Emoji: "🐝"},
	{Name: "MOSQUITO", CanFly: true, Emoji: "🦟"},
	{Name: "DRAGONFLY", CanFly: true, Emoji: "🪰"},
	{Name: "HOUSEFLY", CanFly: true, Emoji: "🪰"},
	{Name: "WASP", CanFly: true, Emoji: "🐝"},
	{Name: "MOTH", CanFly: true, Emoji: "🦋"},
	{Name: "LADYBUG", CanFly: true, Emoji: "🐞"},

	// Flying vehicles and objects
	{Name: "AIRPLANE", CanFly: true, Emoji: "✈️"},
	{Name: "HELICOPTER", CanFly: true, Emoji: "🚁"},
	{Name: "ROCKET", CanFly: true, Emoji: "🚀"},
	{Name: "KITE", CanFly: true, Emoji: "🪁"},
	{Name: "DRONE", CanFly: true, Emoji: "🛸"},
	{Name: "HOT AIR BALLOON", CanFly: true, Emoji: "🎈"},

	// Flying mammal
	{Name: "BAT", CanFly: true, Emoji: "🦇"},

	// Trick items: birds that can't fly
	{Name: "PENGUIN", CanFly: false, Emoji: "🐧"},
	{Name: "OSTRICH", CanFly: false, Emoji: "🪶"},
	{Name: "EMU", CanFly: false, Emoji: "🪶"},
	{Name: "KIWI BIRD", CanFly: false, Emoji: "🐦"},

	// Land animals
	{Name: "COW", CanFly: false, Emoji: "🐄"},
	{Name: "DOG", CanFly: false, Emoji: "🐕"},
	{Name: "CAT", CanFly: false, Emoji: "🐈"},
	{Name: "ELEPHANT", CanFly: false, Emoji: "🐘"},
	{Name: "LION", CanFly: false, Emoji: "🦁"},
	{Name: "TIGER", CanFly: false, Emoji: "🐅"},
	{Name: "HORSE", CanFly: false, Emoji: "🐎"},
	{Name: "RABBIT", CanFly: false, Emoji: "🐇"},
	{Name: "SNAKE", CanFly: false, Emoji: "🐍"},
	{Name: "FISH", CanFly: false, Emoji: "🐟"},
	{Name: "MONKEY", CanFly: false, Emoji: "🐒"},
	{Name: "BEAR", CanFly: false, Emoji: "🐻"},
	{Name: "DEER", CanFly: false, Emoji: "🦌"},
	{Name: "GOAT", CanFly: false, Emoji: "🐐"},
	{Name: "SHEEP", CanFly: false, Emoji: "🐑"},
	{Name: "CAMEL", CanFly: false, Emoji: "🐫"},
	{Name: "ZEBRA", CanFly: false, Emoji: "🦓"},
	{Name: "KANGAROO", CanFly: false, Emoji: "🦘"},
	{Name: "PANDA", CanFly: false, Emoji: "🐼"},
	{Name: "FROG", CanFly: false, Emoji: "🐸"},
	{Name: "TURTLE", CanFly: false, Emoji: "🐢"},
	{Name: "CROCODILE", CanFly: false, Emoji: "🐊"},

	// Vehicles
	{Name: "CAR", CanFly: false, Emoji: "🚗"},
	{Name: "BUS", CanFly: false, Emoji: "🚌"},
	{Name: "TRAIN", CanFly: false, Emoji: "🚂"},
	{Name: "BICYCLE", CanFly: false, Emoji: "🚲"},
	{Name: "MOTORCYCLE", CanFly: false, Emoji: "🏍️"},
	{Name: "BOAT", CanFly: false, Emoji: "⛵"},
	{Name: "SHIP", CanFly: false, Emoji: "🚢"},
	{Name: "TRUCK", CanFly: false, Emoji: "🚛"},

	// Objects
	{Name: "TREE", CanFly: false, Emoji: "🌳"},
	{Name: "FLOWER", CanFly: false, Emoji: "🌸"},
	{Name: "TABLE", CanFly: false, Emoji: "🪑"},
	{Name: "BOOK", CanFly: false, Emoji: "📚"},
	{Name: "PHONE", CanFly: false, Emoji: "📱"},
	{Name: "BALL", CanFly: false, Emoji: "⚽"},
	{Name: "HOUSE", CanFly: false, Emoji: "🏠"},
	{Name: "MOUNTAIN", CanFly: false, Emoji: "🏔️"},
}

// PlayerColor pairs a display name with its hex value. Players are assigned
// colors by index, 0 through maxRoomSize-1.
type PlayerColor struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

var playerColors = [...]PlayerColor{
	{Name: "Red", Hex: "#FF5252"},
	{Name: "Blue", Hex: "#2196F3"},
	{Name: "Green", Hex: "#4CAF50"},
	{Name: "Yellow", Hex: "#FFEB3B"},
	{Name: "Purple", Hex: "#9C27B0"},
	{Name: "Orange", Hex: "#FF9800"},
	{Name: "Pink", Hex: "#E91E63"},
	{Name: "Teal", Hex: "#00BCD4"},
}

const maxRoomSize = len(playerColors)

// parityBiasThreshold: while more items than this remain unused, draws are
// biased toward flying items on even rounds and non-flying on odd rounds to
// keep the mix balanced. Below it, draws are uniform over the remainder.
const parityBiasThreshold = 10

// itemDeck hands out items for one match, never repeating an item until the
// catalog is exhausted, at which point the used set is cleared and repeats
// are allowed.
type itemDeck struct {
	mu   sync.Mutex
	rng  *rand.Rand
	used map[string]bool
}

func newItemDeck(seed int64) *itemDeck {
	return &itemDeck{
		rng:  rand.New(rand.NewSource(seed)),
		used: make(map[string]bool),
	}
}

func (d *itemDeck) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.used = make(map[string]bool)
}

// draw picks the item for the given round number (1-based).
func (d *itemDeck) draw(round int) Item {
	d.mu.Lock()
	defer d.mu.Unlock()

	available := make([]Item, 0, len(items))
	for _, item := range items {
		if !d.used[item.Name] {
			available = append(available, item)
		}
	}

	if len(available) == 0 {
		d.used = make(map[string]bool)
		available = append(available, items...)
	}

	pool := available
	if len(available) > parityBiasThreshold {
		var flying, grounded []Item
		for _, item := range available {
			if item.CanFly {
				flying = append(flying, item)
			} else {
				grounded = append(grounded, item)
			}
		}

		if round%2 == 0 && len(flying) > 0 {
			pool = flying
		} else if len(grounded) > 0 {
			pool = grounded
		}
	}

	item := pool[d.rng.Intn(len(pool))]
	d.used[item.Name] = true

	return item
}
