package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loxodon-dev/loxodon/activitypub"
	"github.com/loxodon-dev/loxodon/db"
	"github.com/loxodon-dev/loxodon/util"
	"github.com/loxodon-dev/loxodon/web"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	database, err := db.NewDB(util.ResolveFilePath(conf.Conf.DbFile))
	if err != nil {
		log.Fatalln(err)
	}
	defer database.Close()

	svc := activitypub.NewService(database, conf)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort),
		Handler: web.NewRouter(conf, svc),
	}

	startServing(srv)
}

func startServing(srv *http.Server) {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("Starting HTTP server on %s", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalln(err)
		}
	}()

	<-done
	log.Println("Stopping HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalln(err)
	}
}
