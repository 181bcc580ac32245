// Command seed is a SUPPLEMENTED feature carried over from the original
// job's populate_test_data.py and populate_promotion_test_data.py: it
// inserts synthetic locations and tips for exercising the pipeline against
// a real Postgres instance without a live ingestion API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gorm.io/gorm"

	"github.com/monlai-dev/tip-pipeline/internal/domain"
	"github.com/monlai-dev/tip-pipeline/internal/infra"
)

type seedTip struct {
	text     string
	location string
	country  string
	language string
}

// miscTips spreads one to three tips per location across many languages, the
// way populate_test_data.py exercises detection/translation breadth.
var miscTips = []seedTip{
	{"Visit the local markets early in the morning for the freshest produce and best prices.", "Tokyo", "Japan", "en"},
	{"Learn basic Japanese phrases - locals really appreciate the effort!", "Tokyo", "Japan", "en"},
	{"Get a Suica card for easy train travel around the city.", "Tokyo", "Japan", "en"},
	{"Cena después de las 9 PM - los restaurantes abren tarde en Barcelona.", "Barcelona", "Spain", "es"},
	{"Reserva las entradas para la Sagrada Familia en línea con anticipación.", "Barcelona", "Spain", "es"},
	{"Dites 'Bonjour' en entrant dans n'importe quel magasin - c'est considéré comme poli.", "Paris", "France", "fr"},
	{"Les meilleurs croissants se trouvent dans les petites boulangeries de quartier.", "Paris", "France", "fr"},
	{"Le métro est efficace mais attention aux pickpockets.", "Paris", "France", "fr"},
	{"Besuchen Sie die lokalen Märkte am frühen Morgen für frische Produkte.", "Berlin", "Germany", "de"},
	{"Visita i mercati locali la mattina presto per i prodotti più freschi.", "Rome", "Italy", "it"},
	{"Visite os mercados locais de manhã cedo para os produtos mais frescos.", "Lisbon", "Portugal", "pt"},
}

// promotionTips groups several paraphrases of the same underlying tip per
// location/theme, designed to trigger the Promotion Engine's clustering,
// the way populate_promotion_test_data.py does.
var promotionTips = []seedTip{
	{"Avoid the overpriced restaurants right next to the Eiffel Tower", "Paris", "France", "en"},
	{"Skip the tourist trap restaurants near Eiffel Tower, they're expensive", "Paris", "France", "en"},
	{"Don't eat at restaurants directly by the Eiffel Tower - total tourist traps", "Paris", "France", "en"},
	{"Stay away from Eiffel Tower area restaurants, overpriced for tourists", "Paris", "France", "en"},
	{"The restaurants around Eiffel Tower are tourist traps with high prices", "Paris", "France", "en"},
	{"Évitez les restaurants touristiques près de la tour Eiffel, trop chers", "Paris", "France", "fr"},

	{"Watch out for pickpockets on the metro, especially during rush hour", "Paris", "France", "en"},
	{"Be careful of pickpockets in the Paris metro system", "Paris", "France", "en"},
	{"Keep your belongings close on the metro - pickpockets are common", "Paris", "France", "en"},
	{"Metro pickpockets are a real issue, stay alert with your bags", "Paris", "France", "en"},

	{"Get a Suica or Pasmo card for trains - makes everything easier", "Tokyo", "Japan", "en"},
	{"Buy a Suica card for easy train and subway travel", "Tokyo", "Japan", "en"},
	{"Suica card is essential for public transportation in Tokyo", "Tokyo", "Japan", "en"},
	{"Don't bother with paper tickets, get a Suica card immediately", "Tokyo", "Japan", "en"},

	{"Restaurants don't open for dinner until 9 PM - eat late like the locals", "Barcelona", "Spain", "en"},
	{"Dinner starts at 9 PM or later in Barcelona, plan accordingly", "Barcelona", "Spain", "en"},
	{"Don't expect to eat dinner before 9 PM, that's just how it is here", "Barcelona", "Spain", "en"},
	{"Los restaurantes no abren para cenar hasta las 9 PM", "Barcelona", "Spain", "es"},

	{"Get an Oyster card for the Tube - much cheaper than buying tickets", "London", "United Kingdom", "en"},
	{"Oyster card is essential for using London Underground efficiently", "London", "United Kingdom", "en"},
	{"Don't buy individual tube tickets, get an Oyster card immediately", "London", "United Kingdom", "en"},
}

func main() {
	clear := pflag.Bool("clear", false, "delete all existing locations, tips, embeddings and promotions first")
	promotion := pflag.Bool("promotion", false, "seed clustering-friendly promotion test data instead of the misc fixture set")
	pflag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "seed: DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := infra.OpenPostgres(dsn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
	defer infra.ClosePostgresql(db)

	if *clear {
		if err := clearAll(db); err != nil {
			fmt.Fprintln(os.Stderr, "seed: clear failed:", err)
			os.Exit(1)
		}
		fmt.Println("cleared all locations, tips, embeddings and promotions")
	}

	tips := miscTips
	if *promotion {
		tips = promotionTips
	}

	count, locations, err := seed(db, tips)
	if err != nil {
		fmt.Fprintln(os.Stderr, "seed: failed:", err)
		os.Exit(1)
	}

	fmt.Printf("created %d tips across %d locations\n", count, locations)
}

func clearAll(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"promotions", "embeddings", "tips", "locations"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

type locationRow struct {
	ID      int64 `gorm:"primaryKey;autoIncrement"`
	Name    string
	Country string
}

func (locationRow) TableName() string { return "locations" }

type tipRow struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	RawText     string
	LocationID  int64
	SubmittedAt time.Time
	Status      string
}

func (tipRow) TableName() string { return "tips" }

func seed(db *gorm.DB, tips []seedTip) (tipCount, locationCount int, err error) {
	locationCache := make(map[string]int64)

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, t := range tips {
			key := t.location + "|" + t.country
			locID, ok := locationCache[key]
			if !ok {
				var loc locationRow
				result := tx.Where("name = ? AND country = ?", t.location, t.country).First(&loc)
				if result.Error != nil {
					loc = locationRow{Name: t.location, Country: t.country}
					if err := tx.Create(&loc).Error; err != nil {
						return fmt.Errorf("create location %s, %s: %w", t.location, t.country, err)
					}
				}
				locID = loc.ID
				locationCache[key] = locID
			}

			row := tipRow{
				RawText:     t.text,
				LocationID:  locID,
				SubmittedAt: time.Now(),
				Status:      string(domain.TipPending),
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create tip for %s: %w", t.location, err)
			}
			tipCount++
		}
		return nil
	})
	return tipCount, len(locationCache), err
}
