package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Provider blocks are optional: a provider whose
// credentials are missing is reported as unavailable at checkout time
// instead of failing the boot.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    PublicBaseURL  string // storefront origin used for buyer return URLs
    APIBaseURL     string // public origin of this API, used for provider callbacks
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    DBMaxOpenConns int    // connection pool size
    JWTSecret      string // secret used to verify access tokens
    AccessTTLMin   int    // access token time-to-live in minutes (dev tokens)

    Currency         string // ISO code charged by every provider
    CurrencyExponent int32  // digits after the decimal point in the major unit

    AMQPURL          string // RabbitMQ URL; empty selects in-process fulfillment
    FulfillmentQueue string // queue carrying payment.validated events

    ProviderTimeout     time.Duration // HTTP timeout for provider API calls
    ConfirmWithProvider bool          // run the advisory confirmation call after a success callback

    Mail        MailConfig
    PayDunya    PayDunyaConfig
    Wave        WaveConfig
    OrangeMoney OrangeMoneyConfig
    Card        CardConfig
    Sandbox     bool // expose the sandbox provider and its confirmation page
}

// MailConfig configures the SMTP notification sink.  When Host is empty
// notifications are written to the log instead of being sent.
type MailConfig struct {
    Host       string
    Port       int
    User       string
    Pass       string
    From       string
    AdminEmail string // operator address for physical-delivery notices
}

// PayDunyaConfig holds the aggregator's API keys.  Mode is "test" or "live".
type PayDunyaConfig struct {
    MasterKey  string
    PrivateKey string
    Token      string
    Mode       string
    StoreName  string
    BaseURL    string // overrides the mode-derived endpoint when set
}

// WaveConfig holds the Wave checkout API key and webhook secret.
type WaveConfig struct {
    APIKey        string
    WebhookSecret string
    BaseURL       string
}

// OrangeMoneyConfig holds OAuth client credentials and the web-payment
// merchant key.  Country is the path segment of the web-payment API
// ("dev" in sandbox, "sn" in production for Senegal).
type OrangeMoneyConfig struct {
    ClientID     string
    ClientSecret string
    MerchantKey  string
    Country      string
    BaseURL      string
}

// CardConfig holds the card processor's secret key and webhook secret.
type CardConfig struct {
    SecretKey     string
    WebhookSecret string
    BaseURL       string
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is read first when present.
// Required variables are enforced by must() and missing values cause the
// program to exit with a fatal log message.
func Load() Config {
    if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
        log.Printf("config: .env not loaded: %v", err)
    }
    port := must("APP_PORT")
    return Config{
        Env:            must("APP_ENV"),
        Port:           port,
        PublicBaseURL:  strings.TrimRight(envStr("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
        APIBaseURL:     strings.TrimRight(envStr("API_BASE_URL", "http://localhost:"+port), "/"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"),
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        DBMaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),

        Currency:         strings.ToUpper(envStr("CURRENCY", "XOF")),
        CurrencyExponent: int32(envInt("CURRENCY_EXPONENT", 0)),

        AMQPURL:          firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
        FulfillmentQueue: envStr("FULFILLMENT_QUEUE", "payment.validated"),

        ProviderTimeout:     envDur("PROVIDER_TIMEOUT", 15*time.Second),
        ConfirmWithProvider: envBool("CONFIRM_WITH_PROVIDER", true),

        Mail: MailConfig{
            Host:       os.Getenv("SMTP_HOST"),
            Port:       envInt("SMTP_PORT", 587),
            User:       os.Getenv("SMTP_USER"),
            Pass:       os.Getenv("SMTP_PASS"),
            From:       envStr("MAIL_FROM", "no-reply@localhost"),
            AdminEmail: os.Getenv("ADMIN_EMAIL"),
        },
        PayDunya: PayDunyaConfig{
            MasterKey:  os.Getenv("PAYDUNYA_MASTER_KEY"),
            PrivateKey: os.Getenv("PAYDUNYA_PRIVATE_KEY"),
            Token:      os.Getenv("PAYDUNYA_TOKEN"),
            Mode:       envStr("PAYDUNYA_MODE", "test"),
            StoreName:  envStr("PAYDUNYA_STORE_NAME", "Librairie"),
            BaseURL:    os.Getenv("PAYDUNYA_BASE_URL"),
        },
        Wave: WaveConfig{
            APIKey:        os.Getenv("WAVE_API_KEY"),
            WebhookSecret: os.Getenv("WAVE_WEBHOOK_SECRET"),
            BaseURL:       envStr("WAVE_BASE_URL", "https://api.wave.com"),
        },
        OrangeMoney: OrangeMoneyConfig{
            ClientID:     os.Getenv("ORANGE_MONEY_CLIENT_ID"),
            ClientSecret: os.Getenv("ORANGE_MONEY_CLIENT_SECRET"),
            MerchantKey:  os.Getenv("ORANGE_MONEY_MERCHANT_KEY"),
            Country:      envStr("ORANGE_MONEY_COUNTRY", "dev"),
            BaseURL:      envStr("ORANGE_MONEY_BASE_URL", "https://api.orange.com"),
        },
        Card: CardConfig{
            SecretKey:     os.Getenv("CARD_SECRET_KEY"),
            WebhookSecret: os.Getenv("CARD_WEBHOOK_SECRET"),
            BaseURL:       envStr("CARD_BASE_URL", "https://api.stripe.com"),
        },
        Sandbox: envBool("SANDBOX_PAYMENTS", false),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

func firstNonEmpty(vals ...string) string {
    for _, v := range vals {
        if v != "" {
            return v
        }
    }
    return ""
}
