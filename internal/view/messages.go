package view

import "fmt"

// Messages is the user-facing text for one locale
type Messages struct {
	Loading         string
	EnterFlight     string
	ErrorPrefix     string
	NoDataFound     string
	ConnectionError string

	FlightTitle string
	Status      string
	Departure   string
	Arrival     string
	Airport     string
	Scheduled   string
	Estimated   string
	Terminal    string
	Gate        string
	Baggage     string

	LiveTitle      string
	Altitude       string
	AltitudeFormat string // format, metres
	Speed          string
	SpeedFormat    string // format, km/h

	WeatherTitle   string
	AirportOf      string // format, side label
	NoMetarFor     string // format, side label
	Wind           string
	WindFormat     string // format, degrees then knots
	MagneticFormat string // format, magnetic degrees
	Visibility     string
	Temperature    string

	RecentSearches string
	PopupFlight    string // format, flight iata
	LivePosition   string
	NotAvailable   string
	DateLayout     string

	// terminal client
	NoRecentSearches string
	UnknownEntry     string // format, entry number
	UnknownCommand   string // format, command
	FilterActive     string // format, filter
	FilterCleared    string
	ShellHelp        string
}

var catalog = map[string]Messages{
	"es": {
		Loading:         "Buscando vuelo...",
		EnterFlight:     "Por favor, introduce un número de vuelo.",
		ErrorPrefix:     "Error:",
		NoDataFound:     "No se encontraron datos.",
		ConnectionError: "Error de conexión. Inténtalo de nuevo más tarde.",

		FlightTitle: "Vuelo",
		Status:      "Estado",
		Departure:   "Salida",
		Arrival:     "Llegada",
		Airport:     "Aeropuerto",
		Scheduled:   "Hora Programada",
		Estimated:   "Hora Estimada",
		Terminal:    "Terminal",
		Gate:        "Puerta",
		Baggage:     "Recogida Equipaje",

		LiveTitle:      "Datos de Posicionamiento en Vivo",
		Altitude:       "Altitud",
		AltitudeFormat: "%s metros",
		Speed:          "Velocidad",
		SpeedFormat:    "%s km/h",

		WeatherTitle:   "Información Meteorológica (METAR)",
		AirportOf:      "Aeropuerto de %s",
		NoMetarFor:     "No hay datos METAR para el aeropuerto de %s.",
		Wind:           "Viento",
		WindFormat:     "%s° a %s nudos",
		MagneticFormat: "%s° magnéticos",
		Visibility:     "Visibilidad",
		Temperature:    "Temperatura",

		RecentSearches: "Búsquedas Recientes:",
		PopupFlight:    "Vuelo: %s",
		LivePosition:   "Posición en vivo",
		NotAvailable:   "N/D",
		DateLayout:     "02/01/2006 15:04",

		NoRecentSearches: "No hay búsquedas recientes.",
		UnknownEntry:     "No existe la búsqueda reciente %d.",
		UnknownCommand:   "Comando desconocido: %s",
		FilterActive:     "Filtro: %s",
		FilterCleared:    "Sin filtro.",
		ShellHelp:        "Introduce un número de vuelo, :history para ver las búsquedas recientes, :N para repetir una, :from/:to IATA y :date AAAA-MM-DD para filtrar, :clear para quitar el filtro, :q para salir.",
	},
	"en": {
		Loading:         "Searching flight...",
		EnterFlight:     "Please enter a flight number.",
		ErrorPrefix:     "Error:",
		NoDataFound:     "No data found.",
		ConnectionError: "Connection error. Please try again later.",

		FlightTitle: "Flight",
		Status:      "Status",
		Departure:   "Departure",
		Arrival:     "Arrival",
		Airport:     "Airport",
		Scheduled:   "Scheduled",
		Estimated:   "Estimated",
		Terminal:    "Terminal",
		Gate:        "Gate",
		Baggage:     "Baggage claim",

		LiveTitle:      "Live telemetry",
		Altitude:       "Altitude",
		AltitudeFormat: "%s m",
		Speed:          "Speed",
		SpeedFormat:    "%s km/h",

		WeatherTitle:   "Weather (METAR)",
		AirportOf:      "%s airport",
		NoMetarFor:     "No METAR data for the %s airport.",
		Wind:           "Wind",
		WindFormat:     "%s° at %s kt",
		MagneticFormat: "%s° magnetic",
		Visibility:     "Visibility",
		Temperature:    "Temperature",

		RecentSearches: "Recent searches:",
		PopupFlight:    "Flight: %s",
		LivePosition:   "Live position",
		NotAvailable:   "N/A",
		DateLayout:     "2006-01-02 15:04",

		NoRecentSearches: "No recent searches.",
		UnknownEntry:     "There is no recent search %d.",
		UnknownCommand:   "Unknown command: %s",
		FilterActive:     "Filter: %s",
		FilterCleared:    "No filter.",
		ShellHelp:        "Enter a flight number, :history to list recent searches, :N to repeat one, :from/:to IATA and :date YYYY-MM-DD to filter, :clear to drop the filter, :q to quit.",
	},
}

// MessagesFor returns the catalog for a locale
func MessagesFor(locale string) (Messages, error) {
	m, ok := catalog[locale]
	if !ok {
		return Messages{}, fmt.Errorf("unsupported locale: %s", locale)
	}
	return m, nil
}

// Failure formats a business failure line. An empty reason falls back to NoDataFound.
func (m Messages) Failure(reason string) string {
	if reason == "" {
		reason = m.NoDataFound
	}
	return m.ErrorPrefix + " " + reason
}

// Popup is the marker label for a flight
func (m Messages) Popup(iata string) string {
	return fmt.Sprintf(m.PopupFlight, iata)
}
