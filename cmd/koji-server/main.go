package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/cienicera/Koji"
	"github.com/cienicera/Koji/config"
	"github.com/cienicera/Koji/convert"
	"github.com/cienicera/Koji/version"
)

// maxBody limits the size of uploaded sources.
const maxBody = 32 << 20

type server struct {
	converter *convert.Converter
}

func newRouter(converter *convert.Converter) *mux.Router {
	s := &server{converter: converter}
	router := mux.NewRouter()
	router.HandleFunc("/convert/{conversion}", s.handleConvert).Methods("POST", "OPTIONS")
	router.HandleFunc("/", handleRoot).Methods("GET")
	return router
}

func (s *server) handleConvert(w http.ResponseWriter, r *http.Request) {
	// Set CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Expose-Headers", "X-Koji-Warnings, X-Koji-Events")

	// Handle pre-flight OPTIONS request
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	conv, err := convert.ParseConversion(mux.Vars(r)["conversion"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	src, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		http.Error(w, fmt.Sprintf("Error reading request body: %v", err), http.StatusRequestEntityTooLarge)
		return
	}
	res, err := s.converter.Convert(src, conv)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, koji.ErrDecode) || errors.Is(err, koji.ErrMissingField) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, fmt.Sprintf("Error converting: %v", err), status)
		return
	}
	for _, warning := range res.Warnings {
		log.Printf("%v: warning: %v", conv, warning)
	}
	w.Header().Set("Content-Type", conv.To.ContentType())
	w.Header().Set("X-Koji-Warnings", strconv.Itoa(len(res.Warnings)))
	w.Header().Set("X-Koji-Events", strconv.Itoa(res.Events))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Output)
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	names := make([]string, len(convert.Conversions))
	for i, c := range convert.Conversions {
		names[i] = c.String()
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Koji server %v. POST a file to /convert/<conversion>, where <conversion> is one of: %v\n", version.String(), strings.Join(names, ", "))
}

func main() {
	addr := flag.String("addr", ":10000", "Address to listen on.")
	configPath := flag.String("config", "", "Read settings from this YAML file instead of koji/config.yml in the user config directory.")
	versionFlag := flag.Bool("version", false, "Print version.")
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String())
		os.Exit(0)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	converter := convert.New(cfg)
	converter.Logger = log.Default()
	http.Handle("/", newRouter(converter))

	log.Printf("Starting server on %s\n", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}
}
