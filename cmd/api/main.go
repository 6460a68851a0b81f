package main

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	catalogServiceURL, _ := url.Parse(getEnv("CATALOG_SERVICE_URL", "http://localhost:8081"))
	circulationServiceURL, _ := url.Parse(getEnv("CIRCULATION_SERVICE_URL", "http://localhost:8082"))
	usersServiceURL, _ := url.Parse(getEnv("USERS_SERVICE_URL", "http://localhost:8083"))

	catalogProxy := httputil.NewSingleHostReverseProxy(catalogServiceURL)
	circulationProxy := httputil.NewSingleHostReverseProxy(circulationServiceURL)
	usersProxy := httputil.NewSingleHostReverseProxy(usersServiceURL)

	http.Handle("/api/v1/books", http.StripPrefix("/api/v1", catalogProxy))
	http.Handle("/api/v1/books/", http.StripPrefix("/api/v1", catalogProxy))
	http.Handle("/api/v1/library", http.StripPrefix("/api/v1", circulationProxy))
	http.Handle("/api/v1/library/", http.StripPrefix("/api/v1", circulationProxy))
	http.Handle("/api/v1/users", http.StripPrefix("/api/v1", usersProxy))
	http.Handle("/api/v1/users/", http.StripPrefix("/api/v1", usersProxy))

	port := getEnv("PORT", "8080")
	log.Printf("API Gateway listening on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
